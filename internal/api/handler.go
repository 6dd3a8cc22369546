// Package api provides the admin HTTP handlers of the bot.
package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

// Schedules is the part of the schedule registry the admin API uses.
type Schedules interface {
	List() iter.Seq[domain.JobInfo]
	Cancel(name string) error
}

// Runs is the part of the task-run journal the admin API uses.
type Runs interface {
	RecentRuns(ctx context.Context, limit int) ([]*domain.TaskRun, error)
	Ping(ctx context.Context) error
}

// Session is the conversation state.
type Session interface {
	Current() string
	Reset() bool
}

// Handler provides common handler dependencies.
type Handler struct {
	schedules Schedules
	runs      Runs
	session   Session
}

// NewHandler creates a new Handler.
func NewHandler(schedules Schedules, runs Runs, session Session) *Handler {
	return &Handler{
		schedules: schedules,
		runs:      runs,
		session:   session,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
