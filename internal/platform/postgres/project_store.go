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

// ProjectStore implements the store.ProjectStore interface
// using a PostgreSQL database as the storage backend.
type ProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewProjectStore creates a new PostgreSQL implementation of the ProjectStore interface.
// If logger is nil, a default logger will be used.
func NewProjectStore(db store.DBTX, logger *slog.Logger) *ProjectStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectStore{
		db:     db,
		logger: logger.With(slog.String("component", "project_store")),
	}
}

var _ store.ProjectStore = (*ProjectStore)(nil)

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Create implements store.ProjectStore.Create.
func (s *ProjectStore) Create(ctx context.Context, project *domain.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		project.ID, project.UserID, project.Name, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create project",
			slog.String("error", err.Error()),
			slog.String("project_id", project.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.ProjectStore.GetByID.
// Returns store.ErrProjectNotFound if the project does not exist.
func (s *ProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	project, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at, updated_at FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProjectNotFound
		}
		return nil, MapError(err)
	}
	return project, nil
}

// ListByUser implements store.ProjectStore.ListByUser.
func (s *ProjectStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY lower(name), id
	`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// AddSkill implements store.ProjectStore.AddSkill.
func (s *ProjectStore) AddSkill(ctx context.Context, projectID, skillID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_skills (project_id, skill_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, projectID, skillID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to link skill to project",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()),
			slog.String("skill_id", skillID.String()))
		return MapError(err)
	}
	return nil
}

// RemoveSkill implements store.ProjectStore.RemoveSkill.
func (s *ProjectStore) RemoveSkill(ctx context.Context, projectID, skillID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM project_skills WHERE project_id = $1 AND skill_id = $2`, projectID, skillID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, fmt.Errorf("%w: project skill link", store.ErrNotFound))
}

// ListSkills implements store.ProjectStore.ListSkills.
func (s *ProjectStore) ListSkills(ctx context.Context, projectID uuid.UUID) ([]*domain.Skill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.name, s.description, s.level, s.experience,
			s.minutes_tracked, s.created_at, s.updated_at
		FROM skills s
		JOIN project_skills ps ON ps.skill_id = s.id
		WHERE ps.project_id = $1
		ORDER BY lower(s.name), s.id
	`, projectID)
	if err != nil {
		return nil, MapError(err)
	}
	return scanSkills(rows)
}
