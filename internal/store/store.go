// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/honorchat/server/internal/domain"
)

// Sentinel errors for account uniqueness violations.
var (
	ErrEmailTaken  = errors.New("email already registered")
	ErrUserIDTaken = errors.New("user id already registered")
)

// Repository defines the interface for persisting users and messages.
type Repository interface {
	// CreateUser persists a new user. Returns ErrEmailTaken or ErrUserIDTaken
	// when the email or user ID is already registered.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by their user ID. Returns (nil, nil) when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns (nil, nil) when the
	// user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateUser updates name, password hash, and avatar for an existing user.
	UpdateUser(ctx context.Context, user *domain.User) error

	// SearchUsers returns users whose name or user ID contains the query,
	// case-insensitively, up to limit results.
	SearchUsers(ctx context.Context, query string, limit int) ([]*domain.User, error)

	// AppendMessage durably appends a message and returns it with the
	// store-assigned timestamp. A persisted message is never mutated or
	// deleted.
	AppendMessage(ctx context.Context, sender, recipient, content string) (*domain.Message, error)

	// MessagesBetween returns every message exchanged between the unordered
	// pair {userA, userB}, ascending by (timestamp, insertion order).
	MessagesBetween(ctx context.Context, userA, userB string) ([]domain.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
