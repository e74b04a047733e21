package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the tracker.
const (
	CardStarted   = "card.started"
	CardStopped   = "card.stopped"
	CardCompleted = "card.completed"
)

// Event describes a committed card transition.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of CardStarted, CardStopped or CardCompleted
	Type string `json:"type"`

	UserID    uuid.UUID  `json:"user_id"`
	CardID    uuid.UUID  `json:"card_id"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`

	// Minutes is the whole minutes the transition added to the card.
	// Zero for CardStarted.
	Minutes int `json:"minutes"`

	// OccurredAt is the clock time of the transition
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(eventType string, userID, cardID uuid.UUID, projectID *uuid.UUID, minutes int, at time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		CardID:     cardID,
		ProjectID:  projectID,
		Minutes:    minutes,
		OccurredAt: at,
	}
}

// EventHandler defines the interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes an event. Handlers ignore types they do not care about.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines the interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes an event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
