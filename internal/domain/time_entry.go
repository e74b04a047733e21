package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeEntry is one contiguous work session against a card.
// EndTime is nil while the session is running.
type TimeEntry struct {
	ID        uuid.UUID  `json:"id"`
	CardID    uuid.UUID  `json:"card_id"`
	UserID    uuid.UUID  `json:"user_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// NewTimeEntry opens a session for the card starting at start.
func NewTimeEntry(cardID, userID uuid.UUID, start time.Time) *TimeEntry {
	return &TimeEntry{
		ID:        uuid.New(),
		CardID:    cardID,
		UserID:    userID,
		StartTime: start.UTC(),
	}
}

// IsOpen reports whether the session is still running.
func (e *TimeEntry) IsOpen() bool {
	return e.EndTime == nil
}

// Valid reports whether the entry can take part in aggregation.
// Open entries are valid; closed entries must not end before they start.
func (e *TimeEntry) Valid() bool {
	return e.EndTime == nil || !e.EndTime.Before(e.StartTime)
}

// Close records the end of the session. A skewed end time is still recorded
// so the entry stays closed, but Duration will report ErrClockSkew for it.
func (e *TimeEntry) Close(end time.Time) error {
	if !e.IsOpen() {
		return ErrEntryClosed
	}
	endTime := end.UTC()
	e.EndTime = &endTime
	return nil
}

// Duration returns the length of a closed session.
func (e *TimeEntry) Duration() (time.Duration, error) {
	if e.IsOpen() {
		return 0, ErrEntryOpen
	}
	if !e.Valid() {
		return 0, ErrClockSkew
	}
	return e.EndTime.Sub(e.StartTime), nil
}

// ElapsedAt returns how long the session has covered at the given instant.
// Closed entries return their duration.
func (e *TimeEntry) ElapsedAt(now time.Time) (time.Duration, error) {
	if !e.IsOpen() {
		return e.Duration()
	}
	if now.Before(e.StartTime) {
		return 0, ErrClockSkew
	}
	return now.Sub(e.StartTime), nil
}

// Clone returns a deep copy of the entry.
func (e *TimeEntry) Clone() *TimeEntry {
	cp := *e
	if e.EndTime != nil {
		end := *e.EndTime
		cp.EndTime = &end
	}
	return &cp
}

// WholeMinutes converts a duration to whole minutes, rounding down and never below zero.
func WholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
