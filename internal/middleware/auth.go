// Package middleware provides HTTP middleware for the admin API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/identity"
)

// BearerToken rejects requests that do not carry the token. An empty token
// rejects every request.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" {
				// Browsers cannot set headers on WebSocket upgrades.
				got = r.URL.Query().Get("token")
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("Admin request rejected", "path", r.URL.Path, "ip", identity.IPFromRequest(r))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
