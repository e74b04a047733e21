package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CardStatus represents where a card is on the board.
type CardStatus string

// Possible card status values.
const (
	CardStatusOpen       CardStatus = "open"
	CardStatusInProgress CardStatus = "in_progress"
	CardStatusDone       CardStatus = "done"
)

// IsValid reports whether s is a known status.
func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusOpen, CardStatusInProgress, CardStatusDone:
		return true
	default:
		return false
	}
}

// MaxMinutes bounds estimated and tracked minutes to the storage column range.
const MaxMinutes = math.MaxInt32

// Card is a trackable unit of work.
//
// TrackedMinutes is a cache of the closed time entries recorded for the card;
// the ledger is the source of truth and the value can be recomputed from it.
type Card struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           CardStatus `json:"status"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	TrackedMinutes   int        `json:"tracked_minutes"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CardUpdate holds the user-editable fields of a card. Nil fields are left unchanged.
type CardUpdate struct {
	Title            *string
	Description      *string
	EstimatedMinutes *int
}

// NewCard creates an open card owned by userID.
// Returns an error if validation fails.
func NewCard(
	userID uuid.UUID,
	title string,
	description string,
	estimatedMinutes int,
	projectID *uuid.UUID,
	now time.Time,
) (*Card, error) {
	card := &Card{
		ID:               uuid.New(),
		UserID:           userID,
		ProjectID:        projectID,
		Title:            strings.TrimSpace(title),
		Description:      description,
		Status:           CardStatusOpen,
		EstimatedMinutes: estimatedMinutes,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks the card's fields and cross-field invariants.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrValidation)
	}
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrValidation)
	}
	if c.Title == "" {
		return ErrEmptyCardTitle
	}
	if c.EstimatedMinutes < 0 || c.TrackedMinutes < 0 {
		return ErrNegativeMinutes
	}
	if c.EstimatedMinutes > MaxMinutes || c.TrackedMinutes > MaxMinutes {
		return ErrMinutesTooLarge
	}
	if !c.Status.IsValid() {
		return NewValidationError("status", "unknown status "+string(c.Status), ErrValidation)
	}
	if c.IsActive && c.Status != CardStatusInProgress {
		return NewValidationError("is_active", "only in-progress cards can be active", ErrValidation)
	}
	if (c.Status == CardStatusDone) != (c.CompletedAt != nil) {
		return NewValidationError("completed_at", "must be set exactly when the card is done", ErrValidation)
	}
	return nil
}

// IsDone reports whether the card has been completed.
func (c *Card) IsDone() bool {
	return c.Status == CardStatusDone
}

// MarkStarted flags the card as the one being tracked.
// An open card moves to in progress.
func (c *Card) MarkStarted(now time.Time) error {
	if c.IsDone() {
		return ErrCardDone
	}
	c.IsActive = true
	if c.Status == CardStatusOpen {
		c.Status = CardStatusInProgress
	}
	c.UpdatedAt = now.UTC()
	return nil
}

// MarkStopped clears the active flag and adds the tracked minutes of the closed session.
// The status is left unchanged.
func (c *Card) MarkStopped(minutes int, now time.Time) error {
	if !c.IsActive {
		return ErrCardNotActive
	}
	if minutes < 0 {
		minutes = 0
	}
	c.IsActive = false
	c.TrackedMinutes += minutes
	c.UpdatedAt = now.UTC()
	return nil
}

// MarkCompleted moves a stopped card to done.
func (c *Card) MarkCompleted(now time.Time) error {
	if c.IsDone() {
		return ErrCardDone
	}
	if c.IsActive {
		return ErrCardActive
	}
	completedAt := now.UTC()
	c.Status = CardStatusDone
	c.CompletedAt = &completedAt
	c.UpdatedAt = completedAt
	return nil
}

// ApplyUpdate changes the editable fields. Done cards are immutable.
// The card is left untouched when an error is returned.
func (c *Card) ApplyUpdate(upd CardUpdate, now time.Time) error {
	if c.IsDone() {
		return ErrCardDone
	}

	next := *c
	if upd.Title != nil {
		next.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.EstimatedMinutes != nil {
		next.EstimatedMinutes = *upd.EstimatedMinutes
	}
	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = now.UTC()
	*c = next
	return nil
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	cp := *c
	if c.ProjectID != nil {
		projectID := *c.ProjectID
		cp.ProjectID = &projectID
	}
	if c.CompletedAt != nil {
		completedAt := *c.CompletedAt
		cp.CompletedAt = &completedAt
	}
	return &cp
}
