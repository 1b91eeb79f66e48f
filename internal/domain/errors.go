package domain

import (
	"errors"
)

var (
	// ErrValidation marks a rejected request. Use errors.As with
	// *ValidationError to get the reason.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable wraps any failure talking to the database.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrQueryTimeout is returned when an aggregate query exceeds its budget.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrNotFound is returned for unknown rule ids.
	ErrNotFound = errors.New("record not found")

	// ErrRateLimited is returned when a client exceeds its generation budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError carries a user-facing rejection reason.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
