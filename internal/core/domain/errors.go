package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNameConflict indicates a sibling folder already uses the name
	ErrNameConflict = errors.New("name conflict")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action.
	// Folder operations also return it for folders that do not exist.
	ErrForbidden = errors.New("forbidden")

	// ErrCycleDetected indicates a move would place a folder under itself
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDimensionMismatch indicates chunk vectors disagree with the store dimensionality
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingDimensionMismatch indicates a query vector disagrees with the stored chunks
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the chat session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates a bounded operation ran out of time
	ErrTimeout = errors.New("timeout")

	// ErrBusy indicates the resource is locked by another worker
	ErrBusy = errors.New("resource busy")

	// ErrInvalidProvider indicates an unknown AI provider was configured
	ErrInvalidProvider = errors.New("invalid provider")
)

// ValidationError describes malformed input. The message is safe to return
// to callers verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ErrorKind classifies domain errors for transport mapping and retry decisions
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindConsistency   ErrorKind = "consistency"
	KindNotFound      ErrorKind = "not_found"
	KindTransient     ErrorKind = "transient"
	KindInternal      ErrorKind = "internal"
)

// KindOf returns the error class of err
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNameConflict),
		errors.Is(err, ErrInvalidProvider):
		return KindValidation
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return KindAuthorization
	case errors.Is(err, ErrCycleDetected), errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrEmbeddingDimensionMismatch):
		return KindConsistency
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrTimeout), errors.Is(err, ErrBusy):
		return KindTransient
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may retry the same request
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
