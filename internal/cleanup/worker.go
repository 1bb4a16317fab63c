// Package cleanup prunes stale sessions on a fixed interval so the local
// database does not grow without bound.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pruner abstracts the storage operation the worker runs.
type Pruner interface {
	PruneSessions(maxAge time.Duration, maxSessions int) (int, error)
}

// Worker runs session pruning on an interval.
type Worker struct {
	store       Pruner
	maxAge      time.Duration
	maxSessions int
	interval    time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker. If interval is <= 0, it defaults to 24h.
func NewWorker(store Pruner, maxAge time.Duration, maxSessions int, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Worker{
		store:       store,
		maxAge:      maxAge,
		maxSessions: maxSessions,
		interval:    interval,
		logger:      slog.Default(),
	}
}

// Run prunes once at startup and then on every interval tick until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	if err := w.RunOnce(); err != nil {
		w.logger.Error("session cleanup failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(); err != nil {
				w.logger.Error("session cleanup failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single pruning pass.
func (w *Worker) RunOnce() error {
	pruned, err := w.store.PruneSessions(w.maxAge, w.maxSessions)
	if err != nil {
		return fmt.Errorf("pruning sessions: %w", err)
	}
	if pruned > 0 {
		w.logger.Info("pruned stale sessions", "count", pruned)
	}
	return nil
}
