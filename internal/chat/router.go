package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/honorchat/server/internal/domain"
	"github.com/honorchat/server/internal/store"
)

// Router accepts send requests, persists them, and attempts immediate
// delivery to the recipient's live connections.
type Router struct {
	repo     store.Repository
	registry *ConnectionRegistry

	// Serializes appends so that submission order defines persisted order
	// (and therefore delivery order) within each conversation pair.
	sendMu sync.Mutex
}

// NewRouter creates a delivery router backed by the given store and registry.
func NewRouter(repo store.Repository, registry *ConnectionRegistry) *Router {
	return &Router{repo: repo, registry: registry}
}

// Send validates the request, appends the message to the store, and pushes
// the persisted message to every live connection the recipient holds.
//
// The append must complete before any push so a message is never observable
// to a receiver without being durably recorded. An unreachable recipient is a
// normal, silent condition: the message stays in the store and the client
// catches up via history.
func (rt *Router) Send(ctx context.Context, senderID, recipientID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if senderID == "" {
		return nil, &ValidationError{Field: "senderId", Reason: "must not be empty"}
	}
	if recipientID == "" {
		return nil, &ValidationError{Field: "recipientId", Reason: "must not be empty"}
	}
	if senderID == recipientID {
		return nil, &ValidationError{Field: "recipientId", Reason: "must differ from senderId"}
	}
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	rt.sendMu.Lock()
	msg, err := rt.repo.AppendMessage(ctx, senderID, recipientID, content)
	rt.sendMu.Unlock()
	if err != nil {
		return nil, &StorageError{Op: "append", Err: err}
	}

	ev := PushEvent{
		Type:      "message",
		SenderID:  msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}

	// At-most-once per connection, unacknowledged. A connection that closed
	// mid-push just drops the event; the registry reports it unreachable
	// from then on.
	for _, conn := range rt.registry.ConnectionsFor(recipientID) {
		if pushErr := conn.Push(ctx, ev); pushErr != nil {
			slog.Debug("Push failed", "recipient", recipientID, "conn_id", conn.ID(), "error", pushErr)
		}
	}

	return msg, nil
}
