package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/google/uuid"
)

// Decoder turns an uploaded file into a Dataset.
// The file name selects the format (e.g. by extension).
type Decoder interface {
	Decode(fileName string, r io.Reader) (Dataset, error)
}

// RunObserver is notified after every run, successful or not.
type RunObserver interface {
	ObserveRun(stats Stats, duration time.Duration, err error)
}

// ServiceConfig holds tuning knobs for the Service.
// Zero values fall back to package defaults.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	HistoryLimit  int
}

// Service runs cleaning requests on behalf of the web layer.
type Service struct {
	decoder  Decoder
	history  HistoryStore
	observer RunObserver
	limiter  *UploadLimiter

	historyLimit int
}

// NewService creates a Service. observer may be nil.
func NewService(cfg ServiceConfig, decoder Decoder, history HistoryStore, observer RunObserver) *Service {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Service{
		decoder:      decoder,
		history:      history,
		observer:     observer,
		limiter:      NewUploadLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		historyLimit: limit,
	}
}

// RunRequest describes one upload to clean.
type RunRequest struct {
	UserID     string
	FileName   string
	File       io.Reader
	Operations []string
}

// Run decodes the uploaded file, cleans it and records the run in history.
//
// Operation names are checked before the file is read so a bad request costs
// nothing. A history write failure is logged and does not fail the run.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := logging.WithFields(ctx, "run_id", runID, "file", req.FileName)

	result, err := s.run(ctx, runID, req)

	duration := time.Since(start)
	if s.observer != nil {
		var stats Stats
		if result != nil {
			stats = result.Stats
		}
		s.observer.ObserveRun(stats, duration, err)
	}

	if err != nil {
		logger.Warn("run failed", "error", err, "duration_ms", duration.Milliseconds())
		return nil, err
	}

	result.Duration = duration
	logger.Info("run completed",
		"rows_before", result.Stats.RowsBefore,
		"rows_after", result.Stats.RowsAfter,
		"columns_before", result.Stats.ColumnsBefore,
		"columns_after", result.Stats.ColumnsAfter,
		"operations", result.Stats.Applied,
		"duration_ms", duration.Milliseconds(),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, runID string, req RunRequest) (*RunResult, error) {
	if _, err := ParseOperations(req.Operations); err != nil {
		return nil, err
	}
	if req.File == nil {
		return nil, errors.New("no file provided")
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	original, err := s.decoder.Decode(req.FileName, req.File)
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}

	cleaned, stats, err := Clean(original, req.Operations)
	if err != nil {
		return nil, err
	}

	entry := HistoryEntry{
		ID:            runID,
		UserID:        req.UserID,
		FileName:      req.FileName,
		RowsBefore:    stats.RowsBefore,
		RowsAfter:     stats.RowsAfter,
		ColumnsBefore: stats.ColumnsBefore,
		ColumnsAfter:  stats.ColumnsAfter,
		Operations:    stats.Applied,
		CleanedAt:     time.Now(),
	}
	if err := s.history.Record(ctx, entry); err != nil {
		logging.FromContext(ctx).Error("record history failed", "run_id", runID, "error", err)
	}

	return &RunResult{
		ID:       runID,
		FileName: req.FileName,
		Original: original,
		Cleaned:  cleaned,
		Stats:    stats,
	}, nil
}

// History returns the most recent runs for a user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	entries, err := s.history.Recent(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

// UploadLimiterStatus returns the current state of the run limiter.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
