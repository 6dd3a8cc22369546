package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/middleware"
)

// NewRouter builds the admin router. Everything except /health and /ping
// requires the bearer token.
func NewRouter(h *Handler, health *HealthHandler, events http.Handler, token string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	health.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(token))
		r.Route("/api", h.RegisterRoutes)
		if events != nil {
			r.Get("/ws/events", events.ServeHTTP)
		}
	})

	return r
}
