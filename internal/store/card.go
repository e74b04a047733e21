package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// CardFilter narrows ListCards. Nil fields match every card.
type CardFilter struct {
	UserID    uuid.UUID
	ProjectID *uuid.UUID
	Status    *domain.CardStatus
	Active    *bool
}

// Matches reports whether the card satisfies the filter.
func (f CardFilter) Matches(card *domain.Card) bool {
	if card.UserID != f.UserID {
		return false
	}
	if f.ProjectID != nil && (card.ProjectID == nil || *card.ProjectID != *f.ProjectID) {
		return false
	}
	if f.Status != nil && card.Status != *f.Status {
		return false
	}
	if f.Active != nil && card.IsActive != *f.Active {
		return false
	}
	return true
}

// CardStore defines the interface for card data persistence.
type CardStore interface {
	// Create saves a new card.
	// Returns ErrInvalidEntity if the card references a missing project.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// GetForUpdate retrieves a card and locks it for the rest of the transaction.
	// Outside a transaction it behaves like GetByID.
	// Returns ErrCardNotFound if the card does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// GetActive returns the user's active card, or nil if no card is being tracked.
	GetActive(ctx context.Context, userID uuid.UUID) (*domain.Card, error)

	// ListActive returns every active card across all users.
	ListActive(ctx context.Context) ([]*domain.Card, error)

	// List returns the cards matching the filter ordered by creation time, oldest first.
	// Returns an empty slice when nothing matches.
	List(ctx context.Context, filter CardFilter) ([]*domain.Card, error)

	// Update persists every mutable field of an existing card.
	// Returns ErrCardNotFound if the card does not exist and
	// ErrActiveCardExists if it would become a second active card of its user.
	Update(ctx context.Context, card *domain.Card) error

	// Delete removes a card. Experience awards of the card are removed with it.
	// Returns ErrCardNotFound if the card does not exist and
	// ErrReferenced if time entries still reference it.
	Delete(ctx context.Context, id uuid.UUID) error
}
