package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/honorchat/server/internal/domain"
	"github.com/honorchat/server/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, recipient, timestamp);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser persists a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, name, email, password_hash, avatar_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var avatarURL interface{}
	if user.AvatarURL != "" {
		avatarURL = user.AvatarURL
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Name, user.Email, user.PasswordHash,
		avatarURL, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "users.email") {
			return ErrEmailTaken
		}
		if strings.Contains(err.Error(), "users.user_id") {
			return ErrUserIDTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users WHERE user_id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT user_id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var avatarURL sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Name, &user.Email, &user.PasswordHash,
		&avatarURL, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.AvatarURL = avatarURL.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpdateUser updates the mutable profile fields of an existing user.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET name = ?, password_hash = ?, avatar_url = ?, updated_at = ?
		WHERE user_id = ?`

	var avatarURL interface{}
	if user.AvatarURL != "" {
		avatarURL = user.AvatarURL
	}

	result, err := s.db.ExecContext(ctx, query,
		user.Name, user.PasswordHash, avatarURL, time.Now().Unix(), user.UserID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// SearchUsers returns users whose name or user ID contains the query.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]*domain.User, error) {
	stmt := `
		SELECT user_id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users
		WHERE name LIKE ? COLLATE NOCASE OR user_id LIKE ? COLLATE NOCASE
		ORDER BY name LIMIT ?`

	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, stmt, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close user search rows", "error", closeErr)
		}
	}()

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		var avatarURL sql.NullString
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&user.UserID, &user.Name, &user.Email, &user.PasswordHash,
			&avatarURL, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}

		user.AvatarURL = avatarURL.String
		user.CreatedAt = time.Unix(createdAt, 0)
		user.UpdatedAt = time.Unix(updatedAt, 0)
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// AppendMessage durably appends a message with a store-assigned timestamp.
// Retries with exponential backoff on SQLite concurrency errors.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sender, recipient, content string) (*domain.Message, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var msg *domain.Message
	var err error
	for i := 0; i < maxRetries; i++ {
		msg, err = s.appendMessageOnce(ctx, sender, recipient, content)
		if err == nil {
			return msg, nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("AppendMessage hit a locked database, retrying",
				"sender", sender,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}

	return nil, fmt.Errorf("append message after retries: %w", err)
}

func (s *SQLiteStore) appendMessageOnce(ctx context.Context, sender, recipient, content string) (*domain.Message, error) {
	// Microsecond resolution; the AUTOINCREMENT id breaks ties between
	// messages appended within the same microsecond.
	now := time.Now().UTC().Truncate(time.Microsecond)

	query := `INSERT INTO messages (sender, recipient, content, timestamp) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, sender, recipient, content, now.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message insert id: %w", err)
	}

	return &domain.Message{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: now,
	}, nil
}

// MessagesBetween returns the full conversation between the unordered pair
// {userA, userB}, ascending by (timestamp, insertion order).
func (s *SQLiteStore) MessagesBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	query := `
		SELECT id, sender, recipient, content, timestamp
		FROM messages
		WHERE (sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Recipient, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Timestamp = time.UnixMicro(ts).UTC()
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
