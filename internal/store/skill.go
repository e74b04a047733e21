package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
)

// SkillStore defines the interface for skill data persistence.
type SkillStore interface {
	// Create saves a new skill.
	// Returns ErrDuplicate if the user already has a skill with the same name.
	Create(ctx context.Context, skill *domain.Skill) error

	// GetByID retrieves a skill by its unique ID.
	// Returns ErrSkillNotFound if the skill does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Skill, error)

	// GetForUpdate retrieves a skill and locks it for the rest of the transaction.
	// Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Skill, error)

	// ListByUser returns the user's skills ordered by name.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Skill, error)

	// Update persists the name, description, level, experience and tracked minutes.
	// Returns ErrSkillNotFound if the skill does not exist.
	Update(ctx context.Context, skill *domain.Skill) error

	// Delete removes a skill together with its project links and awards.
	// Returns ErrSkillNotFound if the skill does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectStore defines the interface for project data persistence,
// including the many-to-many association between projects and skills.
type ProjectStore interface {
	// Create saves a new project.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project by its unique ID.
	// Returns ErrProjectNotFound if the project does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// ListByUser returns the user's projects ordered by name.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error)

	// AddSkill links a skill to a project. Linking twice is a no-op.
	// Returns ErrInvalidEntity if either side does not exist.
	AddSkill(ctx context.Context, projectID, skillID uuid.UUID) error

	// RemoveSkill unlinks a skill from a project.
	// Returns ErrNotFound if the link does not exist.
	RemoveSkill(ctx context.Context, projectID, skillID uuid.UUID) error

	// ListSkills returns the skills linked to a project ordered by name.
	ListSkills(ctx context.Context, projectID uuid.UUID) ([]*domain.Skill, error)
}

// AwardStore defines the interface for experience award persistence.
type AwardStore interface {
	// Create saves a new award.
	// Returns ErrDuplicate if the card already granted experience to the skill.
	Create(ctx context.Context, award *domain.ExperienceAward) error

	// ListByUser returns the user's awards, most recent first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ExperienceAward, error)
}
