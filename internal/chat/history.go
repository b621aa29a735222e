package chat

import (
	"context"

	"github.com/honorchat/server/internal/domain"
	"github.com/honorchat/server/internal/store"
)

// HistoryService exposes the ordered conversation read path. The requester
// must be one of the two participants.
type HistoryService struct {
	repo store.Repository
}

// NewHistoryService creates a history service over the given store.
func NewHistoryService(repo store.Repository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Conversation returns the full message history between userA and userB,
// ascending by timestamp. The pair is unordered: Conversation(a, b) and
// Conversation(b, a) return identical sequences. A conversation with no
// messages yet is an empty slice, not an error.
func (h *HistoryService) Conversation(ctx context.Context, requesterID, userA, userB string) ([]domain.Message, error) {
	if userA == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if userB == "" {
		return nil, &ValidationError{Field: "recipientId", Reason: "must not be empty"}
	}
	if requesterID != userA && requesterID != userB {
		return nil, ErrUnauthorized
	}

	messages, err := h.repo.MessagesBetween(ctx, userA, userB)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
