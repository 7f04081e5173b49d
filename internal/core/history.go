package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultHistoryLimit is how many runs the dashboard lists.
const DefaultHistoryLimit = 10

// HistoryEntry records one completed cleaning run.
type HistoryEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	FileName      string    `json:"fileName"`
	RowsBefore    int       `json:"rowsBefore"`
	RowsAfter     int       `json:"rowsAfter"`
	ColumnsBefore int       `json:"columnsBefore"`
	ColumnsAfter  int       `json:"columnsAfter"`
	Operations    []string  `json:"operations"`
	CleanedAt     time.Time `json:"cleanedAt"`
}

// HistoryStore persists cleaning runs per user.
type HistoryStore interface {
	Record(ctx context.Context, entry HistoryEntry) error
	// Recent returns the newest entries for userID, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}

// MemoryHistory is an in-process HistoryStore used when no database is configured.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]HistoryEntry // userID -> entries in insertion order
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]HistoryEntry)}
}

// Record appends an entry. A zero CleanedAt is set to now.
func (h *MemoryHistory) Record(ctx context.Context, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.CleanedAt.IsZero() {
		entry.CleanedAt = time.Now()
	}
	entry.Operations = append([]string(nil), entry.Operations...)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[entry.UserID] = append(h.entries[entry.UserID], entry)
	return nil
}

// Recent returns up to limit entries for userID, newest first.
// A non-positive limit falls back to DefaultHistoryLimit.
func (h *MemoryHistory) Recent(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	src := h.entries[userID]
	out := make([]HistoryEntry, len(src))
	copy(out, src)
	h.mu.RUnlock()

	// Stable so entries sharing a timestamp keep newest-inserted first after the reverse.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CleanedAt.After(out[j].CleanedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
