package lunarys

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrUnavailable indicates the backend could not serve a read.
	// Callers fall back to an empty result.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrEmptyMessage indicates Send was called with blank content.
	ErrEmptyMessage = errors.New("empty message")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrInvalidConversationID indicates a complete event whose payload is
	// not a positive base-10 integer.
	ErrInvalidConversationID = errors.New("invalid conversation id")
)

// BackendError is a failure reported by the backend inside a stream.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
