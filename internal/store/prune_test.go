package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPruner struct {
	calls     atomic.Int64
	retention atomic.Int64
}

func (p *countingPruner) PruneRuns(_ context.Context, retention time.Duration) (int64, error) {
	p.calls.Add(1)
	p.retention.Store(int64(retention))
	return 1, nil
}

func TestPruneWorkerTicksUntilCancelled(t *testing.T) {
	t.Parallel()

	p := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartPruneWorker(ctx, p, 5*time.Millisecond, time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.calls.Load() < 2 {
		t.Fatal("worker did not prune on its interval")
	}
	if time.Duration(p.retention.Load()) != time.Hour {
		t.Fatalf("retention not forwarded: %v", time.Duration(p.retention.Load()))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
