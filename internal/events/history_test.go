package events

import (
	"testing"
)

func runIDs(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.RunID)
	}
	return out
}

func TestHistoryWraps(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	if len(h.Snapshot()) != 0 {
		t.Fatal("new history should be empty")
	}

	for _, id := range []string{"a", "b"} {
		h.Add(Event{RunID: id})
	}
	if got := runIDs(h.Snapshot()); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected snapshot %v", got)
	}

	for _, id := range []string{"c", "d", "e"} {
		h.Add(Event{RunID: id})
	}
	got := runIDs(h.Snapshot())
	if len(got) != 3 || got[0] != "c" || got[1] != "d" || got[2] != "e" {
		t.Fatalf("expected oldest entries evicted, got %v", got)
	}
}
