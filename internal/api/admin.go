package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/schedule"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// scheduleView is a registry entry as shown to operators.
type scheduleView struct {
	domain.JobInfo
	Age string `json:"age"`
}

// RegisterRoutes registers the admin routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/schedules", h.ListSchedules)
	r.Delete("/schedules/{name}", h.CancelSchedule)
	r.Get("/runs", h.ListRuns)
	r.Get("/session", h.GetSession)
	r.Delete("/session", h.ResetSession)
}

// ListSchedules returns the registered jobs.
func (h *Handler) ListSchedules(w http.ResponseWriter, _ *http.Request) {
	views := []scheduleView{}
	for info := range h.schedules.List() {
		views = append(views, scheduleView{JobInfo: info, Age: humanize.Time(info.CreatedAt)})
	}
	JSON(w, http.StatusOK, map[string]any{
		"count":     len(views),
		"schedules": views,
	})
}

// CancelSchedule stops the named job.
func (h *Handler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.schedules.Cancel(name); err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			Error(w, http.StatusNotFound, "schedule not found")
			return
		}
		slog.Error("Failed to cancel schedule", "error", err, "name", name)
		Error(w, http.StatusInternalServerError, "failed to cancel schedule")
		return
	}
	slog.Info("Schedule cancelled via admin API", "name", name)
	JSON(w, http.StatusOK, map[string]string{"status": "cancelled", "name": name})
}

// ListRuns returns the most recent task runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list task runs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.TaskRun{}
	}
	JSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetSession reports the active conversation context.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	id := h.session.Current()
	JSON(w, http.StatusOK, map[string]any{
		"active":     id != "",
		"context_id": id,
	})
}

// ResetSession clears the conversation context, like /new in the chat.
func (h *Handler) ResetSession(w http.ResponseWriter, _ *http.Request) {
	cleared := h.session.Reset()
	slog.Info("Session reset via admin API", "cleared", cleared)
	JSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
