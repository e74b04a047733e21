// Package service implements the application's use cases on top of the
// domain model and the repository boundary.
package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// ErrNotOwned is returned when a user tries to act on an entity owned by someone else.
var ErrNotOwned = errors.New("resource is owned by another user")

// ServiceError wraps errors from the service layer with operation context.
// The wrapped error stays reachable through errors.Is and errors.As.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// IsExpected reports whether err belongs to the domain error taxonomy,
// i.e. it was caused by the caller rather than by the system.
func IsExpected(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrValidation,
		domain.ErrInvalidState,
		domain.ErrConflict,
		domain.ErrClockSkew,
		ErrNotOwned,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
