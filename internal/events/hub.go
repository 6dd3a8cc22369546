package events

import (
	"log/slog"
	"sync"
)

const (
	// subscriberBuffer is how many events a slow subscriber may lag behind
	// before events are dropped for it.
	subscriberBuffer = 32
	historySize      = 50
)

// Hub fans events out to subscribers. Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan Event
	history *History
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    make(map[int]chan Event),
		history: NewHistory(historySize),
		logger:  logger,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters
// it and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	h.logger.Debug("Event subscriber registered", "subscriber", id)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if current, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(current)
				h.logger.Debug("Event subscriber unregistered", "subscriber", id)
			}
		})
	}
}

// Publish records ev and delivers it to every subscriber that has room
// for it.
func (h *Hub) Publish(ev Event) {
	h.history.Add(ev)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Event subscriber is lagging, dropping event", "subscriber", id, "type", ev.Type)
		}
	}
}

// Recent returns the latest events, oldest first.
func (h *Hub) Recent() []Event {
	return h.history.Snapshot()
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
