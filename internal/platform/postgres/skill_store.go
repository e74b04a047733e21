package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

const skillColumns = `id, user_id, name, description, level, experience, minutes_tracked, created_at, updated_at`

// SkillStore implements the store.SkillStore interface
// using a PostgreSQL database as the storage backend.
type SkillStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSkillStore creates a new PostgreSQL implementation of the SkillStore interface.
// If logger is nil, a default logger will be used.
func NewSkillStore(db store.DBTX, logger *slog.Logger) *SkillStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillStore{
		db:     db,
		logger: logger.With(slog.String("component", "skill_store")),
	}
}

var _ store.SkillStore = (*SkillStore)(nil)

func scanSkill(row rowScanner) (*domain.Skill, error) {
	var skill domain.Skill
	err := row.Scan(
		&skill.ID,
		&skill.UserID,
		&skill.Name,
		&skill.Description,
		&skill.Level,
		&skill.Experience,
		&skill.MinutesTracked,
		&skill.CreatedAt,
		&skill.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	skill.CreatedAt = skill.CreatedAt.UTC()
	skill.UpdatedAt = skill.UpdatedAt.UTC()
	return &skill, nil
}

func scanSkills(rows *sql.Rows) ([]*domain.Skill, error) {
	defer func() { _ = rows.Close() }()

	skills := []*domain.Skill{}
	for rows.Next() {
		skill, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan skill row: %w", err)
		}
		skills = append(skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skill rows: %w", err)
	}
	return skills, nil
}

// Create implements store.SkillStore.Create.
// Returns store.ErrDuplicate if the user already has a skill with that name.
func (s *SkillStore) Create(ctx context.Context, skill *domain.Skill) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := skill.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO skills (` + skillColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		skill.ID,
		skill.UserID,
		skill.Name,
		skill.Description,
		skill.Level,
		skill.Experience,
		skill.MinutesTracked,
		skill.CreatedAt,
		skill.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("skill name already taken",
				slog.String("user_id", skill.UserID.String()),
				slog.String("name", skill.Name))
			return fmt.Errorf("%w: skill %q", store.ErrDuplicate, skill.Name)
		}
		log.Error("failed to create skill",
			slog.String("error", err.Error()),
			slog.String("skill_id", skill.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.SkillStore.GetByID.
// Returns store.ErrSkillNotFound if the skill does not exist.
func (s *SkillStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Skill, error) {
	return s.getOne(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = $1`, id)
}

// GetForUpdate implements store.SkillStore.GetForUpdate with SELECT ... FOR UPDATE.
func (s *SkillStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Skill, error) {
	return s.getOne(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = $1 FOR UPDATE`, id)
}

func (s *SkillStore) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.Skill, error) {
	skill, err := scanSkill(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSkillNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get skill",
			slog.String("error", err.Error()),
			slog.String("skill_id", id.String()))
		return nil, MapError(err)
	}
	return skill, nil
}

// ListByUser implements store.SkillStore.ListByUser.
func (s *SkillStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Skill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE user_id = $1 ORDER BY lower(name), id`, userID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list skills",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	return scanSkills(rows)
}

// Update implements store.SkillStore.Update.
// Returns store.ErrSkillNotFound if the skill does not exist.
func (s *SkillStore) Update(ctx context.Context, skill *domain.Skill) error {
	if err := skill.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE skills
		SET name = $2, description = $3, level = $4, experience = $5,
			minutes_tracked = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		skill.ID,
		skill.Name,
		skill.Description,
		skill.Level,
		skill.Experience,
		skill.MinutesTracked,
		skill.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update skill",
			slog.String("error", err.Error()),
			slog.String("skill_id", skill.ID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSkillNotFound)
}

// Delete implements store.SkillStore.Delete. Links and awards cascade.
func (s *SkillStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSkillNotFound)
}
