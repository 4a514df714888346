package dialogue

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dialogue package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("dialogue: API key is required")

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("dialogue: not connected")

	// ErrAlreadyConnected indicates the session is already connected.
	ErrAlreadyConnected = errors.New("dialogue: already connected")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("dialogue: operation timed out")
)

// APIError represents an error event from the collaborator.
type APIError struct {
	// Code is the error code from the API.
	Code string

	// Message is the human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dialogue: API error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("dialogue: API error: %s", e.Message)
}

// ConnectionError represents a WebSocket session error.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates reconnection may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dialogue: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("dialogue: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{Reason: reason, Cause: cause, Retryable: retryable}
}

// DecodeError indicates a server event that did not match any known shape.
// Unknown shapes are surfaced rather than scanned for plausible fields.
type DecodeError struct {
	// Type is the unrecognized event type tag, if any.
	Type string

	// Cause is the underlying parse error.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("dialogue: cannot decode event type %q", e.Type)
	}
	return fmt.Sprintf("dialogue: cannot decode event: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error suggests a retry could succeed.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Retryable
	}
	return errors.Is(err, ErrTimeout)
}
