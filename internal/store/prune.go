package store

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the part of Repository the prune worker needs.
type Pruner interface {
	PruneRuns(ctx context.Context, retention time.Duration) (int64, error)
}

// StartPruneWorker runs a background goroutine that deletes finished runs
// older than retention every interval until ctx is cancelled. The returned
// channel is closed when the goroutine exits.
func StartPruneWorker(ctx context.Context, repo Pruner, interval, retention time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Prune worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneRuns(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func pruneRuns(ctx context.Context, repo Pruner, retention time.Duration) {
	deleted, err := repo.PruneRuns(ctx, retention)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Prune worker: context canceled during prune", "error", err)
			return
		}
		slog.Error("Prune worker failed to delete old runs", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Prune worker deleted old runs", "count", deleted)
	}
}
