package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/store"
)

// Ledger is the append-mostly record of work sessions. A Ledger is bound to
// the unit of work it was created from.
type Ledger struct {
	entries store.TimeEntryStore
}

// NewLedger returns a ledger over the unit of work's time entry store.
func NewLedger(s store.Store) *Ledger {
	return &Ledger{entries: s.TimeEntries()}
}

// OpenEntry starts a session for the card at start.
// Returns a conflict error if the card already has an open session.
func (l *Ledger) OpenEntry(ctx context.Context, cardID, userID uuid.UUID, start time.Time) (*domain.TimeEntry, error) {
	entry := domain.NewTimeEntry(cardID, userID, start)
	if err := l.entries.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("open time entry: %w", err)
	}
	return entry, nil
}

// CloseEntry ends the session at end and returns the closed entry.
// A skewed end is recorded as is; callers detect it via Duration.
func (l *Ledger) CloseEntry(ctx context.Context, entry *domain.TimeEntry, end time.Time) (*domain.TimeEntry, error) {
	closed := entry.Clone()
	if err := closed.Close(end); err != nil {
		return nil, err
	}
	if err := l.entries.Close(ctx, closed.ID, *closed.EndTime); err != nil {
		return nil, fmt.Errorf("close time entry: %w", err)
	}
	return closed, nil
}

// ActiveEntryFor returns the card's open session, or nil.
func (l *Ledger) ActiveEntryFor(ctx context.Context, cardID uuid.UUID) (*domain.TimeEntry, error) {
	return l.entries.GetOpenByCard(ctx, cardID)
}

// EntriesInRange returns the entries overlapping [from, to) ordered by start
// time. Either q.UserID or q.CardID selects the owner.
func (l *Ledger) EntriesInRange(ctx context.Context, q store.EntryQuery, from, to time.Time) ([]*domain.TimeEntry, error) {
	q.From, q.To = from, to
	return l.entries.Query(ctx, q)
}

// TrackedMinutes sums the whole minutes of the card's closed, valid sessions.
// Each session is floored on its own, matching what Stop accumulates.
func (l *Ledger) TrackedMinutes(ctx context.Context, cardID uuid.UUID) (int, []*domain.TimeEntry, error) {
	entries, err := l.entries.Query(ctx, store.EntryQuery{CardID: cardID})
	if err != nil {
		return 0, nil, err
	}

	var (
		minutes int
		invalid []*domain.TimeEntry
	)
	for _, entry := range entries {
		if entry.IsOpen() {
			continue
		}
		d, err := entry.Duration()
		if err != nil {
			invalid = append(invalid, entry)
			continue
		}
		minutes += domain.WholeMinutes(d)
	}
	return minutes, invalid, nil
}
