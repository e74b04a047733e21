package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

// SkillService manages skills, projects and the links between them, and
// exposes the progression view of a user's skills.
//
// It also handles card events: every stopped session adds its minutes to the
// skills of the card's project.
type SkillService interface {
	events.EventHandler

	CreateSkill(ctx context.Context, userID uuid.UUID, name, description string) (*domain.Skill, error)
	GetSkill(ctx context.Context, userID, skillID uuid.UUID) (*domain.Skill, error)
	ListSkills(ctx context.Context, userID uuid.UUID) ([]*domain.Skill, error)
	UpdateSkill(ctx context.Context, userID, skillID uuid.UUID, upd domain.SkillUpdate) (*domain.Skill, error)
	DeleteSkill(ctx context.Context, userID, skillID uuid.UUID) error

	CreateProject(ctx context.Context, userID uuid.UUID, name string) (*domain.Project, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error)
	LinkSkill(ctx context.Context, userID, projectID, skillID uuid.UUID) error
	UnlinkSkill(ctx context.Context, userID, projectID, skillID uuid.UUID) error
	ProjectSkills(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Skill, error)

	// GetUserSkillProgress returns the progress view of every skill the user owns.
	GetUserSkillProgress(ctx context.Context, userID uuid.UUID) ([]domain.UserSkillProgress, error)

	// ListAwards returns the experience the user's completed cards granted, newest first.
	ListAwards(ctx context.Context, userID uuid.UUID) ([]*domain.ExperienceAward, error)

	// TotalExperience sums the experience of all the user's awards.
	TotalExperience(ctx context.Context, userID uuid.UUID) (int, error)
}

type skillService struct {
	repo        store.Repository
	progression progression.Service
	clock       clock.Clock
	logger      *slog.Logger
}

var _ SkillService = (*skillService)(nil)

// NewSkillService creates a SkillService.
// It returns an error if any of the required dependencies are nil.
func NewSkillService(
	repo store.Repository,
	prog progression.Service,
	clk clock.Clock,
	logger *slog.Logger,
) (SkillService, error) {
	if repo == nil {
		return nil, domain.NewValidationError("repo", "cannot be nil", domain.ErrValidation)
	}
	if prog == nil {
		return nil, domain.NewValidationError("progression", "cannot be nil", domain.ErrValidation)
	}
	if clk == nil {
		return nil, domain.NewValidationError("clock", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &skillService{
		repo:        repo,
		progression: prog,
		clock:       clk,
		logger:      logger.With(slog.String("component", "skill_service")),
	}, nil
}

func (s *skillService) CreateSkill(ctx context.Context, userID uuid.UUID, name, description string) (*domain.Skill, error) {
	skill, err := domain.NewSkill(userID, name, description, s.clock.Now())
	if err != nil {
		return nil, NewServiceError("create skill", "invalid skill", err)
	}
	if err := s.repo.Skills().Create(ctx, skill); err != nil {
		return nil, NewServiceError("create skill", "could not save skill", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("skill created",
		slog.String("skill_id", skill.ID.String()),
		slog.String("name", skill.Name))
	return skill, nil
}

func (s *skillService) GetSkill(ctx context.Context, userID, skillID uuid.UUID) (*domain.Skill, error) {
	skill, err := s.ownedSkill(ctx, s.repo, userID, skillID)
	if err != nil {
		return nil, NewServiceError("get skill", "could not load skill", err)
	}
	return skill, nil
}

func (s *skillService) ListSkills(ctx context.Context, userID uuid.UUID) ([]*domain.Skill, error) {
	skills, err := s.repo.Skills().ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list skills", "could not list skills", err)
	}
	return skills, nil
}

func (s *skillService) UpdateSkill(
	ctx context.Context,
	userID, skillID uuid.UUID,
	upd domain.SkillUpdate,
) (*domain.Skill, error) {
	var updated *domain.Skill
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		skill, err := st.Skills().GetForUpdate(ctx, skillID)
		if err != nil {
			return err
		}
		if skill.UserID != userID {
			return ErrNotOwned
		}
		if err := skill.ApplyUpdate(upd, s.clock.Now()); err != nil {
			return err
		}
		if err := st.Skills().Update(ctx, skill); err != nil {
			return err
		}
		updated = skill
		return nil
	})
	if err != nil {
		return nil, NewServiceError("update skill", "could not update skill", err)
	}
	return updated, nil
}

func (s *skillService) DeleteSkill(ctx context.Context, userID, skillID uuid.UUID) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		if _, err := s.ownedSkill(ctx, st, userID, skillID); err != nil {
			return err
		}
		return st.Skills().Delete(ctx, skillID)
	})
	if err != nil {
		return NewServiceError("delete skill", "could not delete skill", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("skill deleted",
		slog.String("skill_id", skillID.String()))
	return nil
}

func (s *skillService) CreateProject(ctx context.Context, userID uuid.UUID, name string) (*domain.Project, error) {
	project, err := domain.NewProject(userID, name, s.clock.Now())
	if err != nil {
		return nil, NewServiceError("create project", "invalid project", err)
	}
	if err := s.repo.Projects().Create(ctx, project); err != nil {
		return nil, NewServiceError("create project", "could not save project", err)
	}
	return project, nil
}

func (s *skillService) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error) {
	project, err := s.ownedProject(ctx, s.repo, userID, projectID)
	if err != nil {
		return nil, NewServiceError("get project", "could not load project", err)
	}
	return project, nil
}

func (s *skillService) ListProjects(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	projects, err := s.repo.Projects().ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list projects", "could not list projects", err)
	}
	return projects, nil
}

// LinkSkill attaches a skill to a project. Both must belong to the user.
func (s *skillService) LinkSkill(ctx context.Context, userID, projectID, skillID uuid.UUID) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		if _, err := s.ownedProject(ctx, st, userID, projectID); err != nil {
			return err
		}
		if _, err := s.ownedSkill(ctx, st, userID, skillID); err != nil {
			return err
		}
		return st.Projects().AddSkill(ctx, projectID, skillID)
	})
	if err != nil {
		return NewServiceError("link skill", "could not link skill to project", err)
	}
	return nil
}

func (s *skillService) UnlinkSkill(ctx context.Context, userID, projectID, skillID uuid.UUID) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		if _, err := s.ownedProject(ctx, st, userID, projectID); err != nil {
			return err
		}
		return st.Projects().RemoveSkill(ctx, projectID, skillID)
	})
	if err != nil {
		return NewServiceError("unlink skill", "could not unlink skill from project", err)
	}
	return nil
}

func (s *skillService) ProjectSkills(ctx context.Context, userID, projectID uuid.UUID) ([]*domain.Skill, error) {
	var skills []*domain.Skill
	err := s.repo.ReadTx(ctx, func(ctx context.Context, st store.Store) error {
		if _, err := s.ownedProject(ctx, st, userID, projectID); err != nil {
			return err
		}
		var err error
		skills, err = st.Projects().ListSkills(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, NewServiceError("list project skills", "could not list project skills", err)
	}
	return skills, nil
}

func (s *skillService) GetUserSkillProgress(ctx context.Context, userID uuid.UUID) ([]domain.UserSkillProgress, error) {
	skills, err := s.repo.Skills().ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("get skill progress", "could not list skills", err)
	}

	progress := make([]domain.UserSkillProgress, 0, len(skills))
	for _, skill := range skills {
		progress = append(progress, s.progression.Progress(skill))
	}
	return progress, nil
}

func (s *skillService) ListAwards(ctx context.Context, userID uuid.UUID) ([]*domain.ExperienceAward, error) {
	awards, err := s.repo.Awards().ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list awards", "could not list awards", err)
	}
	return awards, nil
}

func (s *skillService) TotalExperience(ctx context.Context, userID uuid.UUID) (int, error) {
	awards, err := s.repo.Awards().ListByUser(ctx, userID)
	if err != nil {
		return 0, NewServiceError("total experience", "could not list awards", err)
	}

	total := 0
	for _, award := range awards {
		total += award.Experience
	}
	return total, nil
}

// HandleEvent adds the minutes of a stopped session to the skills linked to
// the card's project. Other events are ignored.
func (s *skillService) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.CardStopped || event.ProjectID == nil || event.Minutes <= 0 {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	var updated int
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		updated = 0
		linked, err := st.Projects().ListSkills(ctx, *event.ProjectID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, l := range linked {
			skill, err := st.Skills().GetForUpdate(ctx, l.ID)
			if err != nil {
				return err
			}
			skill.AddMinutes(event.Minutes, now)
			if err := st.Skills().Update(ctx, skill); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return NewServiceError("track skill minutes", "could not update skills", err)
	}

	log.Debug("skill minutes tracked",
		slog.String("card_id", event.CardID.String()),
		slog.Int("minutes", event.Minutes),
		slog.Int("skills", updated))
	return nil
}

func (s *skillService) ownedSkill(ctx context.Context, st store.Store, userID, skillID uuid.UUID) (*domain.Skill, error) {
	skill, err := st.Skills().GetByID(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if skill.UserID != userID {
		return nil, ErrNotOwned
	}
	return skill, nil
}

func (s *skillService) ownedProject(ctx context.Context, st store.Store, userID, projectID uuid.UUID) (*domain.Project, error) {
	project, err := st.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrNotOwned
	}
	return project, nil
}
