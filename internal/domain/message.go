// Package domain contains core domain types for the chat server.
package domain

import (
	"time"
)

// Message is a single chat message between two users. Messages are immutable
// once persisted; the timestamp is assigned by the store at append time and is
// the sole ordering key (the store's insertion order breaks ties).
type Message struct {
	ID        int64     `json:"-"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Between reports whether the message belongs to the conversation between
// the unordered pair {a, b}.
func (m *Message) Between(a, b string) bool {
	return (m.Sender == a && m.Recipient == b) ||
		(m.Sender == b && m.Recipient == a)
}
