package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the sentinel behind every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrSendFailed is the sentinel behind every *SendError.
	ErrSendFailed = errors.New("send failed")
)

// ValidationError reports a request rejected before reaching the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SendError reports one recipient whose send did not complete. Cause keeps
// the original failure.
type SendError struct {
	Recipient string
	Cause     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %q failed: %v", e.Recipient, e.Cause)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Cause}
}
