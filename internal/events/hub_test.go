package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestHubFansOut(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Publish(Event{Type: TaskStarted, RunID: "r1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.RunID != "r1" {
				t.Fatalf("%s got %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the event", name)
		}
	}

	cancelA()
	cancelA()
	if hub.Len() != 1 {
		t.Fatalf("expected 1 subscriber after cancel, got %d", hub.Len())
	}
	if _, ok := <-a; ok {
		t.Fatal("cancelled subscriber channel should be closed")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(Event{Type: TaskCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestWebSocketStream(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	srv := httptest.NewServer(NewWebSocketHandler(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Len() != 1 {
		t.Fatal("handler did not subscribe")
	}

	hub.Publish(Event{Type: TaskFailed, RunID: "r9", Detail: "boom"})

	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if ev.Type != TaskFailed || ev.RunID != "r9" || ev.Detail != "boom" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketReplay(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	hub.Publish(Event{Type: TaskStarted, RunID: "old"})

	srv := httptest.NewServer(NewWebSocketHandler(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?replay=1", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if ev.RunID != "old" {
		t.Fatalf("expected replayed event, got %+v", ev)
	}
}
