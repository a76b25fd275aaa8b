package app

import (
	"errors"
	"fmt"
)

// Domain error sentinels for the server application layer.
// These enable consistent HTTP status mapping via errors.Is().

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input from the caller.
	ErrValidation = errors.New("validation error")

	// ErrThreadLocked indicates the thread is paused on a pending tool
	// approval and cannot accept new user turns.
	ErrThreadLocked = errors.New("thread locked pending approval")

	// ErrNoPendingApproval indicates an approval decision arrived for a
	// thread with no saved run state.
	ErrNoPendingApproval = errors.New("no pending approval")
)

// NotFoundError wraps ErrNotFound with a descriptive message.
func NotFoundError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrNotFound)
}

// ValidationError wraps ErrValidation with a descriptive message.
func ValidationError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}
