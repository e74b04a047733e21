package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/service"
	"github.com/phrazzld/progressor-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes using the
// domain error taxonomy.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrClockSkew):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that never
// includes wrapped internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		verrs validator.ValidationErrors
		vErr  *domain.ValidationError
	)

	switch {
	case errors.Is(err, service.ErrNotOwned):
		return "You do not have access to this resource"

	case errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, store.ErrSkillNotFound):
		return "Skill not found"
	case errors.Is(err, store.ErrProjectNotFound):
		return "Project not found"
	case errors.Is(err, store.ErrTimeEntryNotFound):
		return "Time entry not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, domain.ErrClockSkew):
		return "Clock skew detected: session ends before it starts"

	case errors.Is(err, domain.ErrCardDone):
		return "Card is already done"
	case errors.Is(err, domain.ErrCardNotActive):
		return "Card is not being tracked"
	case errors.Is(err, domain.ErrCardActive):
		return "Card is being tracked; stop it first"
	case errors.Is(err, domain.ErrInvalidState):
		return "Operation not allowed in the current state"

	case errors.Is(err, store.ErrActiveCardExists):
		return "Another card is already being tracked"
	case errors.Is(err, store.ErrOpenEntryExists):
		return "Card already has a running session"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, domain.ErrConflict):
		return conflictMessage(err)

	case errors.As(err, &verrs):
		return SanitizeValidationError(verrs)
	case errors.As(err, &vErr):
		return fmt.Sprintf("Invalid %s: %s", vErr.Field, vErr.Message)
	case errors.Is(err, domain.ErrEmptyCardTitle):
		return "Invalid title: cannot be empty"
	case errors.Is(err, domain.ErrNegativeMinutes):
		return "Invalid minutes: cannot be negative"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// conflictMessage keeps the "card has N time entries" detail, which contains
// nothing but a count.
func conflictMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "card has "); i >= 0 {
		return "Cannot delete: " + msg[i:]
	}
	return "Request conflicts with existing data"
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fieldName(fe), getValidationTagMessage(fe.Tag()))
}

func fieldName(fe validator.FieldError) string {
	var b strings.Builder
	for i, r := range fe.Field() {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gte":
		return "must not be negative"
	case "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. For 500s, fallback
// replaces the generic message when it is non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
