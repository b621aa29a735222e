package chat

import (
	"context"
	"errors"
	"testing"
)

func TestHistoryService_RequiresParticipant(t *testing.T) {
	repo := newFakeRepo()
	svc := NewHistoryService(repo)

	_, err := svc.Conversation(context.Background(), "intruder", "u1", "u2")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestHistoryService_EmptyConversationIsEmptySlice(t *testing.T) {
	repo := newFakeRepo()
	svc := NewHistoryService(repo)

	messages, err := svc.Conversation(context.Background(), "u1", "u1", "u2")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", messages)
	}
}

func TestHistoryService_PairSymmetry(t *testing.T) {
	repo := newFakeRepo()
	router := NewRouter(repo, NewConnectionRegistry())
	svc := NewHistoryService(repo)
	ctx := context.Background()

	for _, send := range []struct{ from, to, text string }{
		{"u1", "u2", "hello"},
		{"u2", "u1", "hey"},
		{"u1", "u3", "other conversation"},
		{"u1", "u2", "how are you"},
	} {
		if _, err := router.Send(ctx, send.from, send.to, send.text); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	forward, err := svc.Conversation(ctx, "u1", "u1", "u2")
	if err != nil {
		t.Fatalf("Conversation(u1,u2) failed: %v", err)
	}
	backward, err := svc.Conversation(ctx, "u2", "u2", "u1")
	if err != nil {
		t.Fatalf("Conversation(u2,u1) failed: %v", err)
	}

	if len(forward) != 3 {
		t.Fatalf("Expected 3 messages in the pair, got %d", len(forward))
	}
	if len(forward) != len(backward) {
		t.Fatalf("Pair symmetry broken: %d vs %d", len(forward), len(backward))
	}
	for i := range forward {
		if forward[i] != backward[i] {
			t.Errorf("Sequence differs at %d: %+v vs %+v", i, forward[i], backward[i])
		}
	}

	// Non-decreasing timestamps.
	for i := 1; i < len(forward); i++ {
		if forward[i].Timestamp.Before(forward[i-1].Timestamp) {
			t.Errorf("History not ordered at %d: %v before %v", i, forward[i].Timestamp, forward[i-1].Timestamp)
		}
	}
}

func TestHistoryService_ValidatesIdentifiers(t *testing.T) {
	svc := NewHistoryService(newFakeRepo())

	_, err := svc.Conversation(context.Background(), "u1", "", "u2")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError for empty userId, got %v", err)
	}
}

func TestHistoryService_StorageFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.queryErr = errors.New("disk gone")
	svc := NewHistoryService(repo)

	_, err := svc.Conversation(context.Background(), "u1", "u1", "u2")
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected StorageError, got %v", err)
	}
}
