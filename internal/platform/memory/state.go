package memory

import (
	"maps"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
)

type state struct {
	cards    map[uuid.UUID]*domain.Card
	entries  map[uuid.UUID]*domain.TimeEntry
	skills   map[uuid.UUID]*domain.Skill
	projects map[uuid.UUID]*domain.Project
	// links maps a project to the set of its skills.
	links  map[uuid.UUID]map[uuid.UUID]struct{}
	awards map[uuid.UUID]*domain.ExperienceAward
}

func newState() *state {
	return &state{
		cards:    make(map[uuid.UUID]*domain.Card),
		entries:  make(map[uuid.UUID]*domain.TimeEntry),
		skills:   make(map[uuid.UUID]*domain.Skill),
		projects: make(map[uuid.UUID]*domain.Project),
		links:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		awards:   make(map[uuid.UUID]*domain.ExperienceAward),
	}
}

// clone copies the maps. Stored values are never mutated in place, so the
// pointers can be shared between copies.
func (s *state) clone() *state {
	cp := &state{
		cards:    maps.Clone(s.cards),
		entries:  maps.Clone(s.entries),
		skills:   maps.Clone(s.skills),
		projects: maps.Clone(s.projects),
		links:    make(map[uuid.UUID]map[uuid.UUID]struct{}, len(s.links)),
		awards:   maps.Clone(s.awards),
	}
	for projectID, skills := range s.links {
		cp.links[projectID] = maps.Clone(skills)
	}
	return cp
}
