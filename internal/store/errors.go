package store

import (
	"errors"
	"fmt"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrCardNotFound, ErrSkillNotFound).
	// It wraps domain.ErrNotFound.
	ErrNotFound = fmt.Errorf("%w: entity", domain.ErrNotFound)

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., two skills with the same name for one user).
	// It wraps domain.ErrConflict.
	ErrDuplicate = fmt.Errorf("%w: entity already exists", domain.ErrConflict)

	// ErrInvalidEntity is returned when the store rejects an entity because it
	// violates a constraint, such as a reference to a missing project.
	// It wraps domain.ErrValidation.
	ErrInvalidEntity = fmt.Errorf("%w: invalid entity", domain.ErrValidation)

	// ErrReferenced is returned when an entity cannot be removed because
	// other entities still reference it. It wraps domain.ErrConflict.
	ErrReferenced = fmt.Errorf("%w: entity is still referenced", domain.ErrConflict)

	// Entity-specific "not found" errors

	// ErrCardNotFound indicates that the requested card does not exist in the store.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)

	// ErrTimeEntryNotFound indicates that the requested time entry does not exist in the store.
	ErrTimeEntryNotFound = fmt.Errorf("%w: time entry", ErrNotFound)

	// ErrSkillNotFound indicates that the requested skill does not exist in the store.
	ErrSkillNotFound = fmt.Errorf("%w: skill", ErrNotFound)

	// ErrProjectNotFound indicates that the requested project does not exist in the store.
	ErrProjectNotFound = fmt.Errorf("%w: project", ErrNotFound)

	// Entity-specific conflicts

	// ErrActiveCardExists indicates that the user already has an active card.
	ErrActiveCardExists = fmt.Errorf("%w: user already has an active card", domain.ErrConflict)

	// ErrOpenEntryExists indicates that the card already has an open time entry.
	ErrOpenEntryExists = fmt.Errorf("%w: card already has an open time entry", domain.ErrConflict)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// All entity-specific not found errors wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "card", "time entry")
	Operation string // The operation that failed (e.g., "create", "close")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
