// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

// Repository journals task runs.
type Repository interface {
	// StartRun inserts a run in the running state.
	StartRun(ctx context.Context, run *domain.TaskRun) error

	// FinishRun records the final status of a run.
	FinishRun(ctx context.Context, run *domain.TaskRun) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*domain.TaskRun, error)

	// PruneRuns deletes finished runs older than the retention window.
	PruneRuns(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
