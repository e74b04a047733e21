package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Skill is a named progression track that accrues experience from completed work.
type Skill struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Level          int       `json:"level"`
	Experience     int       `json:"experience"`
	MinutesTracked int       `json:"minutes_tracked"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSkill creates a level 1 skill with no experience.
func NewSkill(userID uuid.UUID, name, description string, now time.Time) (*Skill, error) {
	skill := &Skill{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: description,
		Level:       1,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := skill.Validate(); err != nil {
		return nil, err
	}
	return skill, nil
}

// Validate checks the skill's fields.
func (s *Skill) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrValidation)
	}
	if s.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrValidation)
	}
	if s.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrValidation)
	}
	if s.Level < 1 {
		return NewValidationError("level", "must be at least 1", ErrValidation)
	}
	if s.Experience < 0 || s.MinutesTracked < 0 {
		return ErrNegativeMinutes
	}
	return nil
}

// SkillUpdate holds the editable fields of a skill. Nil fields are left unchanged.
type SkillUpdate struct {
	Name        *string
	Description *string
}

// ApplyUpdate renames or re-describes the skill. The skill is unchanged on error.
func (s *Skill) ApplyUpdate(upd SkillUpdate, now time.Time) error {
	next := *s
	if upd.Name != nil {
		next.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now.UTC()
	*s = next
	return nil
}

// AddExperience grows the skill's experience and records the level computed for the new total.
// Experience never decreases.
func (s *Skill) AddExperience(xp int, levelFor func(int) int, now time.Time) error {
	if xp < 0 {
		return ErrNegativeAward
	}
	s.Experience += xp
	if level := levelFor(s.Experience); level > s.Level {
		s.Level = level
	}
	s.UpdatedAt = now.UTC()
	return nil
}

// AddMinutes records time tracked on cards linked to this skill.
func (s *Skill) AddMinutes(minutes int, now time.Time) {
	if minutes <= 0 {
		return
	}
	s.MinutesTracked += minutes
	s.UpdatedAt = now.UTC()
}

// Clone returns a copy of the skill.
func (s *Skill) Clone() *Skill {
	cp := *s
	return &cp
}

// Project groups cards and determines which skills earn experience from them.
type Project struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a project owned by userID.
func NewProject(userID uuid.UUID, name string, now time.Time) (*Project, error) {
	project := &Project{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if project.UserID == uuid.Nil {
		return nil, NewValidationError("user_id", "cannot be empty", ErrValidation)
	}
	if project.Name == "" {
		return nil, NewValidationError("name", "cannot be empty", ErrValidation)
	}
	return project, nil
}

// Clone returns a copy of the project.
func (p *Project) Clone() *Project {
	cp := *p
	return &cp
}

// UserSkillProgress is a read-only view of a skill's standing.
type UserSkillProgress struct {
	SkillID          uuid.UUID `json:"skill_id"`
	Name             string    `json:"name"`
	Level            int       `json:"level"`
	Experience       int       `json:"experience"`
	ExperienceToNext int       `json:"experience_to_next"`
	MinutesTracked   int       `json:"minutes_tracked"`
}

// ExperienceAward records the experience a completed card granted to one skill.
type ExperienceAward struct {
	ID               uuid.UUID `json:"id"`
	CardID           uuid.UUID `json:"card_id"`
	SkillID          uuid.UUID `json:"skill_id"`
	UserID           uuid.UUID `json:"user_id"`
	TrackedMinutes   int       `json:"tracked_minutes"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	BonusApplied     bool      `json:"bonus_applied"`
	Experience       int       `json:"experience"`
	AwardedAt        time.Time `json:"awarded_at"`
}
