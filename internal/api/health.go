package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// AgentProber checks that the remote agent answers.
type AgentProber interface {
	Health(ctx context.Context) error
}

// SubscriberCounter reports how many clients follow the event stream.
type SubscriberCounter interface {
	Len() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	runs        Runs
	agent       AgentProber
	subscribers SubscriberCounter
	timeout     time.Duration
}

// NewHealthHandler creates a new health handler. agent and subscribers may
// be nil.
func NewHealthHandler(runs Runs, agent AgentProber, subscribers SubscriberCounter) *HealthHandler {
	return &HealthHandler{runs: runs, agent: agent, subscribers: subscribers, timeout: 5 * time.Second}
}

// Health returns the health status of the bot and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.runs.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.agent != nil {
		if err := h.agent.Health(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", "agent", "error", err)
			checks["agent"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["agent"] = "ok"
		}
	}

	if h.subscribers != nil {
		status["event_subscribers"] = h.subscribers.Len()
	}

	if statusCode != http.StatusOK {
		status["status"] = "degraded"
	}
	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
