package progression

import (
	"github.com/phrazzld/progressor-api/internal/domain"
)

// Award is the experience granted to each skill linked to a completed card.
type Award struct {
	Experience   int
	BonusApplied bool
}

// Service defines the interface for skill progression calculations
type Service interface {
	// AwardFor computes the experience a completed card grants
	AwardFor(card *domain.Card) Award

	// LevelForXP maps cumulative experience to a level (always >= 1)
	LevelForXP(xp int) int

	// XPForLevel returns the experience threshold of a level
	XPForLevel(level int) int

	// Progress builds the read-only progress view of a skill
	Progress(skill *domain.Skill) domain.UserSkillProgress
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new progression service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new progression service with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

func (s *defaultService) AwardFor(card *domain.Card) Award {
	if card == nil {
		return Award{}
	}
	xp, bonus := calculateAward(card.TrackedMinutes, card.EstimatedMinutes, s.params)
	return Award{Experience: xp, BonusApplied: bonus}
}

func (s *defaultService) LevelForXP(xp int) int {
	return levelForExperience(xp, s.params)
}

func (s *defaultService) XPForLevel(level int) int {
	return experienceForLevel(level, s.params)
}

func (s *defaultService) Progress(skill *domain.Skill) domain.UserSkillProgress {
	level := s.LevelForXP(skill.Experience)
	return domain.UserSkillProgress{
		SkillID:          skill.ID,
		Name:             skill.Name,
		Level:            level,
		Experience:       skill.Experience,
		ExperienceToNext: s.XPForLevel(level+1) - skill.Experience,
		MinutesTracked:   skill.MinutesTracked,
	}
}
