package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/rollup"
	"github.com/phrazzld/progressor-api/internal/service"
)

// CreateCardRequest defines the payload for POST /api/cards.
type CreateCardRequest struct {
	Title            string     `json:"title"             validate:"required,max=200"`
	Description      string     `json:"description"       validate:"max=5000"`
	EstimatedMinutes int        `json:"estimated_minutes" validate:"gte=0,lte=2147483647"`
	ProjectID        *uuid.UUID `json:"project_id"`
}

// UpdateCardRequest defines the payload for PUT /api/cards/{id}.
// Omitted fields are left unchanged.
type UpdateCardRequest struct {
	Title            *string `json:"title"             validate:"omitempty,min=1,max=200"`
	Description      *string `json:"description"       validate:"omitempty,max=5000"`
	EstimatedMinutes *int    `json:"estimated_minutes" validate:"omitempty,gte=0,lte=2147483647"`
}

// CreateSkillRequest defines the payload for POST /api/skills.
type CreateSkillRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// UpdateSkillRequest defines the payload for PUT /api/skills/{id}.
type UpdateSkillRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// CreateProjectRequest defines the payload for POST /api/projects.
type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CardResponse is the API view of a card.
type CardResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	TrackedMinutes   int        `json:"tracked_minutes"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// TimeEntryResponse is the API view of a tracking session.
type TimeEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	CardID    uuid.UUID  `json:"card_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// StopResponse describes a closed session.
type StopResponse struct {
	Card      CardResponse       `json:"card"`
	Entry     *TimeEntryResponse `json:"entry,omitempty"`
	Minutes   int                `json:"minutes"`
	ClockSkew bool               `json:"clock_skew"`
}

// StartResponse describes the outcome of starting a card.
type StartResponse struct {
	Card          CardResponse       `json:"card"`
	Entry         *TimeEntryResponse `json:"entry,omitempty"`
	AlreadyActive bool               `json:"already_active"`
	Stopped       *StopResponse      `json:"stopped,omitempty"`
}

// CompleteResponse describes a completed card and the experience it granted.
type CompleteResponse struct {
	Card    CardResponse              `json:"card"`
	Stopped *StopResponse             `json:"stopped,omitempty"`
	Awards  []*domain.ExperienceAward `json:"awards"`
}

// TotalExperienceResponse is the experience a user earned across all awards.
type TotalExperienceResponse struct {
	Experience int `json:"experience"`
}

// DailyTotalsResponse is the per-day breakdown of one month.
type DailyTotalsResponse struct {
	Month string              `json:"month"`
	Days  []rollup.DailyTotal `json:"days"`
}

func cardToResponse(card *domain.Card) CardResponse {
	return CardResponse{
		ID:               card.ID,
		ProjectID:        card.ProjectID,
		Title:            card.Title,
		Description:      card.Description,
		Status:           string(card.Status),
		EstimatedMinutes: card.EstimatedMinutes,
		TrackedMinutes:   card.TrackedMinutes,
		IsActive:         card.IsActive,
		CreatedAt:        card.CreatedAt,
		UpdatedAt:        card.UpdatedAt,
		CompletedAt:      card.CompletedAt,
	}
}

func cardsToResponse(cards []*domain.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardToResponse(c))
	}
	return out
}

func entryToResponse(entry *domain.TimeEntry) *TimeEntryResponse {
	if entry == nil {
		return nil
	}
	return &TimeEntryResponse{
		ID:        entry.ID,
		CardID:    entry.CardID,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
	}
}

func stopToResponse(res *service.StopResult) *StopResponse {
	if res == nil {
		return nil
	}
	return &StopResponse{
		Card:      cardToResponse(res.Card),
		Entry:     entryToResponse(res.Entry),
		Minutes:   res.Minutes,
		ClockSkew: res.ClockSkew,
	}
}
