package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/shared"
)

// ErrRunNotFound is returned when finishing a run that was never started.
var ErrRunNotFound = errors.New("task run not found")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS task_runs (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		scheduled INTEGER NOT NULL DEFAULT 0,
		job_name TEXT,
		status TEXT NOT NULL,
		error TEXT,
		media_count INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_task_runs_started ON task_runs(started_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StartRun inserts a run in the running state.
func (s *SQLiteStore) StartRun(ctx context.Context, run *domain.TaskRun) error {
	query := `
	INSERT INTO task_runs (id, prompt, chat_id, scheduled, job_name, status, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var jobName any
	if run.JobName != "" {
		jobName = run.JobName
	}

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "start run", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			run.ID, run.Prompt, run.ChatID, run.Scheduled, jobName,
			string(run.Status), run.StartedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert task run: %w", err)
		}
		return nil
	})
}

// FinishRun records the final status of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *domain.TaskRun) error {
	query := `
	UPDATE task_runs SET status = ?, error = ?, media_count = ?, finished_at = ?
	WHERE id = ?`

	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	var errText any
	if run.Error != "" {
		errText = run.Error
	}

	var rows int64
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "finish run", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query,
			string(run.Status), errText, run.MediaCount, finished.UnixMilli(), run.ID,
		)
		if err != nil {
			return fmt.Errorf("update task run: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		slog.Warn("FinishRun affected 0 rows", "run_id", run.ID)
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]*domain.TaskRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, prompt, chat_id, scheduled, job_name, status, error,
		       media_count, started_at, finished_at
		FROM task_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close task run rows", "error", closeErr)
		}
	}()

	var runs []*domain.TaskRun
	for rows.Next() {
		var run domain.TaskRun
		var status string
		var jobName, errText sql.NullString
		var startedAt int64
		var finishedAt sql.NullInt64

		if err := rows.Scan(
			&run.ID, &run.Prompt, &run.ChatID, &run.Scheduled, &jobName, &status, &errText,
			&run.MediaCount, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task run row: %w", err)
		}

		run.Status = domain.RunStatus(status)
		run.JobName = jobName.String
		run.Error = errText.String
		run.StartedAt = time.UnixMilli(startedAt).UTC()
		if finishedAt.Valid {
			ts := time.UnixMilli(finishedAt.Int64).UTC()
			run.FinishedAt = &ts
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task runs: %w", err)
	}

	return runs, nil
}

// PruneRuns deletes finished runs older than the retention window.
func (s *SQLiteStore) PruneRuns(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	query := `DELETE FROM task_runs WHERE finished_at IS NOT NULL AND started_at < ?`

	var deleted int64
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "prune runs", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, threshold)
		if err != nil {
			return fmt.Errorf("prune task runs: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
