package events

import (
	"sync"
)

// History keeps the most recent events in a fixed-size ring so new
// subscribers can catch up. Oldest entries are overwritten.
type History struct {
	mu   sync.RWMutex
	buf  []Event
	head int // next write position
	full bool
}

// NewHistory creates a ring holding up to size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 50
	}
	return &History{buf: make([]Event, size)}
}

// Add records ev, evicting the oldest entry when full.
func (h *History) Add(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.head] = ev
	h.head = (h.head + 1) % len(h.buf)
	if h.head == 0 {
		h.full = true
	}
}

// Snapshot returns the stored events, oldest first.
func (h *History) Snapshot() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		return append([]Event(nil), h.buf[:h.head]...)
	}
	out := make([]Event, 0, len(h.buf))
	out = append(out, h.buf[h.head:]...)
	return append(out, h.buf[:h.head]...)
}
