package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// ConfigError reports a problem that must be surfaced before any pipeline work
// starts: missing credentials, missing external binaries, invalid resolution.
// It is never retried.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Detail)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Detail)
}

// NewConfigError creates a ConfigError for the given field
func NewConfigError(field, detail string) *ConfigError {
	return &ConfigError{Field: field, Detail: detail}
}

// TransportError wraps an AI call failure that survived the transport layer's
// own bounded retries. It is fatal to the current stage; the render-repair loop
// never retries it.
type TransportError struct {
	Op       string // "draft", "verify", "repair"
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("AI %s call failed after %d attempt(s): %v", e.Op, e.Attempts, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	// Retryable transport errors
	ErrRateLimited = errors.New("rate limited")
	ErrServerError = errors.New("server error")
	ErrTransient   = errors.New("transient network error")

	// Terminal transport errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrMalformedRequest = errors.New("malformed request")
	ErrEmptyResponse    = errors.New("empty model response")

	ErrInvalidPrompt = errors.New("invalid prompt")
)

// IsRetryable reports whether a transport error belongs to the closed set of
// retryable kinds. The decision is made once at the API boundary; callers do
// not re-classify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServerError) ||
		errors.Is(err, ErrTransient)
}

// IsTerminal reports whether a transport error must not be retried.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrMalformedRequest) ||
		errors.Is(err, ErrEmptyResponse)
}
