// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
// Callers check for them with errors.Is; the API layer maps them to status codes.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	// Stores wrap it with entity-specific errors.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a domain entity or input fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when an operation is illegal for the current
	// lifecycle state of an entity, e.g. stopping a card that is not being tracked.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when an operation would violate an exclusivity
	// constraint, such as a second active card for the same user.
	ErrConflict = errors.New("conflict")

	// ErrClockSkew is returned when a time entry ends before it starts.
	ErrClockSkew = errors.New("clock skew: end time before start time")
)

// Lifecycle errors. All of them wrap ErrInvalidState.
var (
	ErrCardDone        = fmt.Errorf("%w: card is already done", ErrInvalidState)
	ErrCardNotActive   = fmt.Errorf("%w: card is not being tracked", ErrInvalidState)
	ErrCardActive      = fmt.Errorf("%w: card is being tracked", ErrInvalidState)
	ErrEntryOpen       = fmt.Errorf("%w: time entry is still open", ErrInvalidState)
	ErrEntryClosed     = fmt.Errorf("%w: time entry is already closed", ErrInvalidState)
	ErrNegativeAward   = fmt.Errorf("%w: experience cannot decrease", ErrValidation)
	ErrEmptyCardTitle  = fmt.Errorf("%w: card title cannot be empty", ErrValidation)
	ErrNegativeMinutes = fmt.Errorf("%w: minutes cannot be negative", ErrValidation)
	ErrMinutesTooLarge = fmt.Errorf("%w: minutes exceed %d", ErrValidation, MaxMinutes)
)

// ValidationError describes a validation failure for a specific field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error, defaulting to ErrValidation.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
