package store

import (
	"context"
	"log/slog"
	"time"
)

// CleanupWorker periodically sweeps expired sessions off Store, grounded on
// the teacher's outbox processing loop (SPEC_FULL.md §4.6). It backs both
// the `clean-expired-sessions` CLI command (a single pass) and an optional
// background goroutine started from `serve`.
type CleanupWorker struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewCleanupWorker creates a CleanupWorker that runs one CleanExpired pass
// every interval.
func NewCleanupWorker(store *Store, interval time.Duration, logger *slog.Logger) *CleanupWorker {
	return &CleanupWorker{store: store, interval: interval, logger: logger}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (w *CleanupWorker) Run(ctx context.Context) error {
	w.logger.Info("starting session cleanup worker", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping session cleanup worker")
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("session cleanup pass failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce performs a single sweep, logging how many sessions it removed.
func (w *CleanupWorker) RunOnce(ctx context.Context) error {
	deleted, err := w.store.CleanExpired(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.logger.Info("cleaned expired sessions", slog.Int64("deleted", deleted))
	}
	return nil
}
