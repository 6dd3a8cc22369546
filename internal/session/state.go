// Package session holds the single conversation context shared by
// interactive agent calls.
package session

import (
	"sync"
)

// State owns the process-wide conversation context identifier.
//
// Each method is atomic on its own, but callers read the context before an
// agent call and write it after, with no guard spanning the two. When two
// interactive calls overlap, the one that completes last wins. That is
// accepted: the bot serves a single user and a single conversation.
type State struct {
	mu        sync.RWMutex
	contextID string
}

// New returns an empty session state.
func New() *State {
	return &State{}
}

// Current returns the active context identifier, or "" when absent.
func (s *State) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextID
}

// Set replaces the context identifier. Empty values are ignored.
func (s *State) Set(contextID string) {
	if contextID == "" {
		return
	}
	s.mu.Lock()
	s.contextID = contextID
	s.mu.Unlock()
}

// Reset clears the context and reports whether one was set.
func (s *State) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.contextID != ""
	s.contextID = ""
	return had
}
