package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

// AwardStore implements the store.AwardStore interface
// using a PostgreSQL database as the storage backend.
type AwardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewAwardStore creates a new PostgreSQL implementation of the AwardStore interface.
// If logger is nil, a default logger will be used.
func NewAwardStore(db store.DBTX, logger *slog.Logger) *AwardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AwardStore{
		db:     db,
		logger: logger.With(slog.String("component", "award_store")),
	}
}

var _ store.AwardStore = (*AwardStore)(nil)

// Create implements store.AwardStore.Create.
// Returns store.ErrDuplicate if the card already granted experience to the skill.
func (s *AwardStore) Create(ctx context.Context, award *domain.ExperienceAward) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experience_awards (id, card_id, skill_id, user_id, tracked_minutes,
			estimated_minutes, bonus_applied, experience, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		award.ID,
		award.CardID,
		award.SkillID,
		award.UserID,
		award.TrackedMinutes,
		award.EstimatedMinutes,
		award.BonusApplied,
		award.Experience,
		award.AwardedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to record experience award",
			slog.String("error", err.Error()),
			slog.String("card_id", award.CardID.String()),
			slog.String("skill_id", award.SkillID.String()))
		return MapError(err)
	}
	return nil
}

// ListByUser implements store.AwardStore.ListByUser.
func (s *AwardStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ExperienceAward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, skill_id, user_id, tracked_minutes, estimated_minutes,
			bonus_applied, experience, awarded_at
		FROM experience_awards
		WHERE user_id = $1
		ORDER BY awarded_at DESC, id
	`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	awards := []*domain.ExperienceAward{}
	for rows.Next() {
		var a domain.ExperienceAward
		if err := rows.Scan(
			&a.ID, &a.CardID, &a.SkillID, &a.UserID, &a.TrackedMinutes,
			&a.EstimatedMinutes, &a.BonusApplied, &a.Experience, &a.AwardedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan award row: %w", err)
		}
		a.AwardedAt = a.AwardedAt.UTC()
		awards = append(awards, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating award rows: %w", err)
	}
	return awards, nil
}
