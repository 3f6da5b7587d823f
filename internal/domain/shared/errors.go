// Package shared contains common domain types and errors
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFormat = errors.New("invalid format")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Persistence errors
	ErrPersistence = errors.New("persistence error")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "wordle", "leaderboard", "discord"
	Op      string // Operation that failed, e.g., "Load", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of e carrying err as its cause.
// The copy still matches e with errors.Is.
func (e *DomainError) Wrap(err error) *DomainError {
	return WrapError(e.Domain, e.Op, e.Kind, e.Message, err)
}

// Leaderboard domain errors
var (
	ErrSnapshotCorrupt    = NewDomainError("leaderboard", "Load", ErrInvalidFormat, "stored snapshot is corrupt")
	ErrSnapshotWrite      = NewDomainError("leaderboard", "Save", ErrPersistence, "failed to persist snapshot")
	ErrSnapshotConflict   = NewDomainError("leaderboard", "Save", ErrConcurrentModification, "snapshot changed since it was loaded")
	ErrStoreUnavailable   = NewDomainError("leaderboard", "Load", ErrServiceUnavailable, "leaderboard store is unavailable")
	ErrInvalidDenominator = NewDomainError("leaderboard", "Rank", ErrInvalidInput, "denominator must be positive")
)

// Ingestion errors
var (
	ErrSourceMismatch  = NewDomainError("ingest", "Verify", ErrInvalidInput, "message was not posted by the result source")
	ErrNoResults       = NewDomainError("ingest", "Parse", ErrInvalidFormat, "message contains no recognizable results")
	ErrNotAuthorized   = NewDomainError("ingest", "Authorize", ErrForbidden, "administrator permission required")
	ErrAlreadyIngested = NewDomainError("ingest", "Dedupe", ErrInvalidInput, "message has already been ingested")
)

// External service errors
var (
	ErrDiscordUserNotFound    = NewDomainError("discord", "User", ErrNotFound, "user not found")
	ErrDiscordMessageNotFound = NewDomainError("discord", "ChannelMessage", ErrNotFound, "message not found")
	ErrDiscordChannelNotFound = NewDomainError("discord", "Channel", ErrNotFound, "channel not found")
	ErrDiscordUnavailable     = NewDomainError("discord", "Request", ErrServiceUnavailable, "Discord API is unavailable")
	ErrDiscordRateLimited     = NewDomainError("discord", "Request", ErrRateLimited, "Discord API rate limit exceeded")
	ErrDiscordForbidden       = NewDomainError("discord", "Request", ErrForbidden, "missing Discord permissions")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if the error is an authorization error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConcurrentModification checks if the error is an optimistic-lock conflict.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConcurrentModification)
}

// ErrorClass returns a short label for the kind of err, used in placeholders and metrics.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrExternalService):
		return "external"
	default:
		return "unknown"
	}
}
