package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/honorchat/server/internal/identity"
)

// newChatServer starts a test server where the ?uid= query parameter stands
// in for the verified credential.
func newChatServer(t *testing.T, repo *fakeRepo) (*httptest.Server, *ConnectionRegistry) {
	t.Helper()
	registry := NewConnectionRegistry()
	router := NewRouter(repo, registry)
	wsHandler := NewWebSocketHandler(registry, router, "", true)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid != "" {
			r = r.WithContext(identity.ContextWithUser(r.Context(), uid, uid))
		}
		wsHandler.ServeHTTP(w, r)
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, registry
}

func dialChat(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?uid=" + userID
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to dial as %s: %v", userID, err)
	}
	t.Cleanup(func() {
		_ = ws.Close(websocket.StatusNormalClosure, "test done")
	})

	// Ping/pong round trip guarantees the server has bound the connection
	// before the test proceeds.
	writeEvent(t, ws, map[string]string{"type": "ping"})
	if ev := readEvent(t, ws); ev["type"] != "pong" {
		t.Fatalf("Expected pong, got %v", ev)
	}
	return ws
}

func writeEvent(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	var ev map[string]string
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event %q: %v", data, err)
	}
	return ev
}

func TestWebSocket_SendDeliversToRecipient(t *testing.T) {
	repo := newFakeRepo()
	server, _ := newChatServer(t, repo)

	sender := dialChat(t, server, "u1")
	recipient := dialChat(t, server, "u2")

	writeEvent(t, sender, map[string]string{
		"type":        "send",
		"senderId":    "u1",
		"recipientId": "u2",
		"content":     "hi",
	})

	ev := readEvent(t, recipient)
	if ev["type"] != "message" || ev["senderId"] != "u1" || ev["content"] != "hi" {
		t.Errorf("Unexpected push event: %v", ev)
	}
	if ev["timestamp"] == "" {
		t.Error("Push event missing server-assigned timestamp")
	}
	if _, err := time.Parse(time.RFC3339Nano, ev["timestamp"]); err != nil {
		t.Errorf("Timestamp not RFC3339: %v", err)
	}

	history := repo.stored()
	if len(history) != 1 || history[0].Content != "hi" {
		t.Errorf("Expected message persisted before push, store holds %v", history)
	}
}

func TestWebSocket_EmptyContentAnswersErrorWithoutClosing(t *testing.T) {
	repo := newFakeRepo()
	server, _ := newChatServer(t, repo)

	sender := dialChat(t, server, "u1")

	writeEvent(t, sender, map[string]string{
		"type":        "send",
		"recipientId": "u2",
		"content":     "   ",
	})

	ev := readEvent(t, sender)
	if ev["type"] != "error" {
		t.Fatalf("Expected error event, got %v", ev)
	}
	if got := len(repo.stored()); got != 0 {
		t.Errorf("Store must stay untouched, holds %d", got)
	}

	// The connection survives the rejection.
	writeEvent(t, sender, map[string]string{"type": "ping"})
	if ev := readEvent(t, sender); ev["type"] != "pong" {
		t.Errorf("Connection should remain usable, got %v", ev)
	}
}

func TestWebSocket_SenderMismatchRejected(t *testing.T) {
	repo := newFakeRepo()
	server, _ := newChatServer(t, repo)

	sender := dialChat(t, server, "u1")

	writeEvent(t, sender, map[string]string{
		"type":        "send",
		"senderId":    "someone-else",
		"recipientId": "u2",
		"content":     "hi",
	})

	ev := readEvent(t, sender)
	if ev["type"] != "error" {
		t.Fatalf("Expected error event for sender mismatch, got %v", ev)
	}
	if got := len(repo.stored()); got != 0 {
		t.Errorf("Store must stay untouched, holds %d", got)
	}
}

func TestWebSocket_CloseUnbinds(t *testing.T) {
	repo := newFakeRepo()
	server, registry := newChatServer(t, repo)

	ws := dialChat(t, server, "u1")
	if !registry.Reachable("u1") {
		t.Fatal("Expected u1 reachable after bind")
	}

	_ = ws.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(2 * time.Second)
	for registry.Reachable("u1") {
		if time.Now().After(deadline) {
			t.Fatal("Expected u1 to become unreachable after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_RequiresCredential(t *testing.T) {
	server, _ := newChatServer(t, newFakeRepo())

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credential, got %d", resp.StatusCode)
	}
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	h := NewWebSocketHandler(NewConnectionRegistry(), nil, "https://app.example.com", false)

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := h.checkOrigin(r); got != tc.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
