package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "bot.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &domain.TaskRun{
		ID:        "run-1",
		Prompt:    "price check",
		ChatID:    42,
		Scheduled: true,
		JobName:   "btc",
		Status:    domain.RunRunning,
		StartedAt: started,
	}
	if err := s.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != domain.RunRunning || runs[0].FinishedAt != nil {
		t.Fatalf("unexpected running row %+v", runs)
	}

	finished := started.Add(3 * time.Second)
	run.Status = domain.RunFailed
	run.Error = "agent returned status 502: bad gateway"
	run.FinishedAt = &finished
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err = s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	got := runs[0]
	if got.Status != domain.RunFailed || got.Error != run.Error || got.JobName != "btc" || !got.Scheduled {
		t.Fatalf("unexpected finished row %+v", got)
	}
	if got.Duration() != 3*time.Second {
		t.Fatalf("expected 3s duration, got %v", got.Duration())
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at round trip: %v vs %v", got.StartedAt, started)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.FinishRun(context.Background(), &domain.TaskRun{ID: "nope", Status: domain.RunSucceeded})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		run := &domain.TaskRun{
			ID:        id,
			Prompt:    "p",
			ChatID:    1,
			Status:    domain.RunRunning,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.StartRun(ctx, run); err != nil {
			t.Fatalf("StartRun %s failed: %v", id, err)
		}
	}

	runs, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("expected newest first, got %v, %v", runs[0].ID, runs[len(runs)-1].ID)
	}
}

func TestPruneRunsKeepsRunningAndRecent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	done := old.Add(time.Minute)

	runs := []*domain.TaskRun{
		{ID: "old-done", Prompt: "p", Status: domain.RunSucceeded, StartedAt: old, FinishedAt: &done},
		{ID: "old-running", Prompt: "p", Status: domain.RunRunning, StartedAt: old},
		{ID: "fresh", Prompt: "p", Status: domain.RunSucceeded, StartedAt: time.Now().UTC(), FinishedAt: &done},
	}
	for _, run := range runs {
		if err := s.StartRun(ctx, run); err != nil {
			t.Fatalf("StartRun failed: %v", err)
		}
		if run.FinishedAt != nil {
			if err := s.FinishRun(ctx, run); err != nil {
				t.Fatalf("FinishRun failed: %v", err)
			}
		}
	}

	deleted, err := s.PruneRuns(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 pruned run, got %d", deleted)
	}
	left, _ := s.RecentRuns(ctx, 10)
	if len(left) != 2 {
		t.Fatalf("expected 2 runs left, got %d", len(left))
	}
}
