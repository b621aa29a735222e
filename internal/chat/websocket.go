package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/honorchat/server/internal/identity"
)

// WebSocketHandler upgrades chat connections, binds them to the
// authenticated user, and feeds send events into the delivery router.
type WebSocketHandler struct {
	registry      *ConnectionRegistry
	router        *Router
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(registry *ConnectionRegistry, router *Router, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		registry:      registry,
		router:        router,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsConn adapts a websocket connection to the registry's Conn interface.
// Pushes use context.Background() because the library tracks its own
// connection state; a closed connection fails the write, which is the
// expected silent-drop behavior.
type wsConn struct {
	id string
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), ws: ws}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Push(_ context.Context, ev PushEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.ws.Write(context.Background(), websocket.MessageText, data)
}

// wsMessage represents an inbound WebSocket event.
type wsMessage struct {
	Type        string `json:"type"`
	SenderID    string `json:"senderId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	Content     string `json:"content,omitempty"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade. The identity
// middleware must run first; an unauthenticated request never gets a bound
// connection and therefore accepts no message traffic.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "credential required", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	conn := newWSConn(ws)
	h.registry.Bind(conn, userID)
	defer h.registry.Unbind(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, userID)
	slog.Info("Chat connection ended", "user_id", userID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if writeErr := h.writeJSON(ws, map[string]string{"type": "error", "error": "malformed event"}); writeErr != nil {
				slog.Debug("Failed to send malformed event error", "error", writeErr)
			}
			continue
		}

		switch msg.Type {
		case "send":
			h.handleSend(ctx, ws, userID, msg)
		case "ping":
			if err := h.writeJSON(ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			slog.Debug("Ignoring unknown event type", "type", msg.Type, "user_id", userID)
		}
	}
}

// handleSend routes one send event. Validation and storage failures answer
// on the same connection and never close it.
func (h *WebSocketHandler) handleSend(ctx context.Context, ws *websocket.Conn, userID string, msg wsMessage) {
	if msg.SenderID != "" && msg.SenderID != userID {
		if err := h.writeJSON(ws, map[string]string{"type": "error", "error": "senderId does not match the bound identity"}); err != nil {
			slog.Debug("Failed to send sender mismatch error", "error", err)
		}
		return
	}

	_, err := h.router.Send(ctx, userID, msg.RecipientID, msg.Content)
	if err == nil {
		return
	}

	var validationErr *ValidationError
	var storageErr *StorageError
	switch {
	case errors.As(err, &validationErr):
		if writeErr := h.writeJSON(ws, map[string]string{"type": "error", "error": validationErr.Error()}); writeErr != nil {
			slog.Debug("Failed to send validation error", "error", writeErr)
		}
	case errors.As(err, &storageErr):
		slog.Error("Message not persisted", "error", err, "user_id", userID)
		if writeErr := h.writeJSON(ws, map[string]string{"type": "error", "error": "message not sent"}); writeErr != nil {
			slog.Debug("Failed to send storage error", "error", writeErr)
		}
	default:
		slog.Error("Unexpected send failure", "error", err, "user_id", userID)
		if writeErr := h.writeJSON(ws, map[string]string{"type": "error", "error": "message not sent"}); writeErr != nil {
			slog.Debug("Failed to send error", "error", writeErr)
		}
	}
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
