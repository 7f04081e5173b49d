package web

import (
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/core"
)

var errNoResult = errors.New("no cleaned result in this session")

// storedResult is the last cleaned dataset of a session, kept for download.
type storedResult struct {
	fileName string
	cleaned  core.Dataset
	storedAt time.Time
}

// resultStore holds one result per session token. Entries expire after ttl
// and are pruned on every put.
type resultStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]storedResult
}

func newResultStore(ttl time.Duration) *resultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &resultStore{ttl: ttl, now: time.Now, items: make(map[string]storedResult)}
}

func (rs *resultStore) put(token string, result *core.RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	now := rs.now()
	for key, item := range rs.items {
		if now.Sub(item.storedAt) > rs.ttl {
			delete(rs.items, key)
		}
	}
	rs.items[token] = storedResult{fileName: result.FileName, cleaned: result.Cleaned, storedAt: now}
}

func (rs *resultStore) get(token string) (storedResult, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	item, ok := rs.items[token]
	if !ok {
		return storedResult{}, false
	}
	if rs.now().Sub(item.storedAt) > rs.ttl {
		delete(rs.items, token)
		return storedResult{}, false
	}
	return item, true
}

func (rs *resultStore) drop(token string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.items, token)
}
