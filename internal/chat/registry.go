package chat

import (
	"context"
	"log/slog"
	"sync"
)

// PushEvent is the server-initiated message sent to a live connection.
type PushEvent struct {
	Type      string `json:"type"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Conn is a live client connection the registry can deliver to. Implemented
// by the WebSocket transport; tests substitute fakes.
type Conn interface {
	// ID uniquely identifies the connection handle for its lifetime.
	ID() string
	// Push delivers a message event to the client. At-most-once; errors are
	// not retried.
	Push(ctx context.Context, ev PushEvent) error
}

// ConnectionRegistry tracks which users are currently reachable and through
// which connection handles. It is the exclusive owner of the binding table;
// a user may hold zero, one, or several simultaneous connections.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Conn // userID -> connID -> conn
	owner  map[string]string          // connID -> userID
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byUser: make(map[string]map[string]Conn),
		owner:  make(map[string]string),
	}
}

// Bind associates an open connection with a user. A connection belongs to
// exactly one user at a time: re-binding the same handle to another user
// replaces the original binding. Binding the same handle to the same user is
// idempotent.
func (r *ConnectionRegistry) Bind(conn Conn, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, bound := r.owner[conn.ID()]; bound {
		if prev == userID {
			r.byUser[userID][conn.ID()] = conn
			return
		}
		r.removeLocked(conn.ID(), prev)
	}

	if _, exists := r.byUser[userID]; !exists {
		r.byUser[userID] = make(map[string]Conn)
	}
	r.byUser[userID][conn.ID()] = conn
	r.owner[conn.ID()] = userID
	slog.Info("Connection bound", "user_id", userID, "conn_id", conn.ID())
}

// Unbind removes a connection from whatever user it was bound to. Invoked on
// connection close, graceful or abrupt. Unbinding an unbound handle is a
// no-op.
func (r *ConnectionRegistry) Unbind(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, bound := r.owner[conn.ID()]
	if !bound {
		return
	}
	r.removeLocked(conn.ID(), userID)
	slog.Info("Connection unbound", "user_id", userID, "conn_id", conn.ID())
}

func (r *ConnectionRegistry) removeLocked(connID, userID string) {
	delete(r.owner, connID)
	if conns, ok := r.byUser[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// ConnectionsFor returns the live connections bound to a user. Empty means
// the user is unreachable and delivery is skipped; the message stays in the
// store for later catch-up via history.
func (r *ConnectionRegistry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(sessions))
	for _, c := range sessions {
		conns = append(conns, c)
	}
	return conns
}

// Reachable reports whether the user holds at least one live connection.
func (r *ConnectionRegistry) Reachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}
