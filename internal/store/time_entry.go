package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// EntryQuery selects time entries overlapping [From, To).
// Exactly one of UserID or CardID should be set. A zero To means no upper bound.
type EntryQuery struct {
	UserID uuid.UUID
	CardID uuid.UUID
	From   time.Time
	To     time.Time
}

// Matches reports whether the entry satisfies the query.
// Open entries extend indefinitely into the future. A clock-skewed entry
// counts as covering its start time so aggregation can report it.
func (q EntryQuery) Matches(entry *domain.TimeEntry) bool {
	if q.UserID != uuid.Nil && entry.UserID != q.UserID {
		return false
	}
	if q.CardID != uuid.Nil && entry.CardID != q.CardID {
		return false
	}
	if !q.To.IsZero() && !entry.StartTime.Before(q.To) {
		return false
	}
	if entry.EndTime == nil || q.From.IsZero() {
		return true
	}
	last := entry.StartTime
	if entry.EndTime.After(last) {
		last = *entry.EndTime
	}
	return last.After(q.From)
}

// TimeEntryStore defines the interface for the time entry ledger's persistence.
type TimeEntryStore interface {
	// Insert saves a new open or closed entry.
	// Returns ErrOpenEntryExists if the card already has an open entry and
	// ErrInvalidEntity if the card does not exist.
	Insert(ctx context.Context, entry *domain.TimeEntry) error

	// Close sets the end time of an open entry.
	// Returns ErrTimeEntryNotFound if no open entry has the given ID.
	Close(ctx context.Context, id uuid.UUID, end time.Time) error

	// GetOpenByCard returns the card's open entry, or nil if the card has none.
	GetOpenByCard(ctx context.Context, cardID uuid.UUID) (*domain.TimeEntry, error)

	// Query returns the matching entries ordered by start time ascending.
	// Returns an empty slice when nothing matches.
	Query(ctx context.Context, q EntryQuery) ([]*domain.TimeEntry, error)

	// CountByCard returns the number of entries recorded for the card.
	CountByCard(ctx context.Context, cardID uuid.UUID) (int, error)

	// DeleteByCard removes every entry of the card and returns how many were removed.
	DeleteByCard(ctx context.Context, cardID uuid.UUID) (int, error)
}
