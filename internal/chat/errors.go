// Package chat implements the message delivery core: the connection
// registry, the delivery router, and the history read path.
package chat

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a history query is made by a party who is
// neither participant of the conversation.
var ErrUnauthorized = errors.New("requester is not a conversation participant")

// ValidationError rejects a malformed send or history request before any
// persistence is attempted. It is reported to the caller and never closes the
// connection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a failure of the durable medium. A send that hits one is
// considered not-sent: nothing was pushed and the caller may re-issue.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
