package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/store"
)

type skillStore struct {
	ex executor
}

var _ store.SkillStore = (*skillStore)(nil)

// nameTaken mirrors the unique index on (user_id, lower(name)).
func nameTaken(st *state, skill *domain.Skill) bool {
	for id, other := range st.skills {
		if id != skill.ID && other.UserID == skill.UserID && strings.EqualFold(other.Name, skill.Name) {
			return true
		}
	}
	return false
}

func (s *skillStore) Create(ctx context.Context, skill *domain.Skill) error {
	if err := skill.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.ex.write(ctx, func(st *state) error {
		if _, exists := st.skills[skill.ID]; exists || nameTaken(st, skill) {
			return store.ErrDuplicate
		}
		st.skills[skill.ID] = skill.Clone()
		return nil
	})
}

func (s *skillStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Skill, error) {
	var skill *domain.Skill
	err := s.ex.read(ctx, func(st *state) error {
		stored, ok := st.skills[id]
		if !ok {
			return store.ErrSkillNotFound
		}
		skill = stored.Clone()
		return nil
	})
	return skill, err
}

func (s *skillStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Skill, error) {
	return s.GetByID(ctx, id)
}

func (s *skillStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Skill, error) {
	skills := []*domain.Skill{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.skills {
			if stored.UserID == userID {
				skills = append(skills, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSkills(skills)
	return skills, nil
}

func (s *skillStore) Update(ctx context.Context, skill *domain.Skill) error {
	if err := skill.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.skills[skill.ID]; !ok {
			return store.ErrSkillNotFound
		}
		if nameTaken(st, skill) {
			return store.ErrDuplicate
		}
		st.skills[skill.ID] = skill.Clone()
		return nil
	})
}

func (s *skillStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.skills[id]; !ok {
			return store.ErrSkillNotFound
		}
		for _, linked := range st.links {
			delete(linked, id)
		}
		for awardID, award := range st.awards {
			if award.SkillID == id {
				delete(st.awards, awardID)
			}
		}
		delete(st.skills, id)
		return nil
	})
}

func sortSkills(skills []*domain.Skill) {
	slices.SortFunc(skills, func(a, b *domain.Skill) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
}

type projectStore struct {
	ex executor
}

var _ store.ProjectStore = (*projectStore)(nil)

func (s *projectStore) Create(ctx context.Context, project *domain.Project) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, exists := st.projects[project.ID]; exists {
			return store.ErrDuplicate
		}
		st.projects[project.ID] = project.Clone()
		return nil
	})
}

func (s *projectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project *domain.Project
	err := s.ex.read(ctx, func(st *state) error {
		stored, ok := st.projects[id]
		if !ok {
			return store.ErrProjectNotFound
		}
		project = stored.Clone()
		return nil
	})
	return project, err
}

func (s *projectStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	projects := []*domain.Project{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.projects {
			if stored.UserID == userID {
				projects = append(projects, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(projects, func(a, b *domain.Project) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return projects, nil
}

func (s *projectStore) AddSkill(ctx context.Context, projectID, skillID uuid.UUID) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.projects[projectID]; !ok {
			return fmt.Errorf("%w: project %s does not exist", store.ErrInvalidEntity, projectID)
		}
		if _, ok := st.skills[skillID]; !ok {
			return fmt.Errorf("%w: skill %s does not exist", store.ErrInvalidEntity, skillID)
		}
		if st.links[projectID] == nil {
			st.links[projectID] = make(map[uuid.UUID]struct{})
		}
		st.links[projectID][skillID] = struct{}{}
		return nil
	})
}

func (s *projectStore) RemoveSkill(ctx context.Context, projectID, skillID uuid.UUID) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.links[projectID][skillID]; !ok {
			return fmt.Errorf("%w: project skill link", store.ErrNotFound)
		}
		delete(st.links[projectID], skillID)
		return nil
	})
}

func (s *projectStore) ListSkills(ctx context.Context, projectID uuid.UUID) ([]*domain.Skill, error) {
	skills := []*domain.Skill{}
	err := s.ex.read(ctx, func(st *state) error {
		for skillID := range st.links[projectID] {
			if stored, ok := st.skills[skillID]; ok {
				skills = append(skills, stored.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSkills(skills)
	return skills, nil
}

type awardStore struct {
	ex executor
}

var _ store.AwardStore = (*awardStore)(nil)

func (s *awardStore) Create(ctx context.Context, award *domain.ExperienceAward) error {
	return s.ex.write(ctx, func(st *state) error {
		if _, ok := st.cards[award.CardID]; !ok {
			return fmt.Errorf("%w: card %s does not exist", store.ErrInvalidEntity, award.CardID)
		}
		if _, ok := st.skills[award.SkillID]; !ok {
			return fmt.Errorf("%w: skill %s does not exist", store.ErrInvalidEntity, award.SkillID)
		}
		for id, other := range st.awards {
			if id == award.ID || (other.CardID == award.CardID && other.SkillID == award.SkillID) {
				return store.ErrDuplicate
			}
		}
		cp := *award
		st.awards[award.ID] = &cp
		return nil
	})
}

func (s *awardStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ExperienceAward, error) {
	awards := []*domain.ExperienceAward{}
	err := s.ex.read(ctx, func(st *state) error {
		for _, stored := range st.awards {
			if stored.UserID == userID {
				cp := *stored
				awards = append(awards, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(awards, func(a, b *domain.ExperienceAward) int {
		if c := b.AwardedAt.Compare(a.AwardedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return awards, nil
}
