package events

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams hub events as JSON text frames.
type WebSocketHandler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewWebSocketHandler creates a handler over hub.
func NewWebSocketHandler(hub *Hub, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	h.logger.Info("Event stream opened", "ip", r.RemoteAddr)

	// Clients only listen; CloseRead cancels ctx when they go away.
	ctx := ws.CloseRead(r.Context())

	if r.URL.Query().Get("replay") == "1" {
		for _, ev := range h.hub.Recent() {
			if err := h.write(ctx, ws, ev); err != nil {
				h.logger.Debug("Event replay failed", "error", err)
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Event stream closed", "ip", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(ctx, ws, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("Event stream write failed", "error", err)
				}
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, ev)
}
