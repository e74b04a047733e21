package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/rollup"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

// StatsService computes rollups over the time entry ledger. All methods are
// read-only and run against a consistent snapshot.
type StatsService interface {
	// GetStats returns the trailing week, month and year totals at the current instant.
	GetStats(ctx context.Context, userID uuid.UUID) (*rollup.Stats, error)

	// StatsAsOf returns the trailing totals ending at asOf. Running sessions
	// count only when asOf is not in the past; a future asOf is clamped to now.
	StatsAsOf(ctx context.Context, userID uuid.UUID, asOf time.Time) (*rollup.Stats, error)

	// DailyTotals returns one total per day of the month in the tracker time zone.
	DailyTotals(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]rollup.DailyTotal, error)
}

type statsService struct {
	repo     store.Repository
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger
}

var _ StatsService = (*statsService)(nil)

// NewStatsService creates a StatsService. A nil location means UTC.
func NewStatsService(repo store.Repository, clk clock.Clock, loc *time.Location, logger *slog.Logger) (StatsService, error) {
	if repo == nil {
		return nil, domain.NewValidationError("repo", "cannot be nil", domain.ErrValidation)
	}
	if clk == nil {
		return nil, domain.NewValidationError("clock", "cannot be nil", domain.ErrValidation)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &statsService{
		repo:     repo,
		clock:    clk,
		location: loc,
		logger:   logger.With(slog.String("component", "stats_service")),
	}, nil
}

// GetStats implements StatsService.GetStats.
func (s *statsService) GetStats(ctx context.Context, userID uuid.UUID) (*rollup.Stats, error) {
	now := s.clock.Now()
	return s.statsAt(ctx, userID, now, now)
}

// StatsAsOf implements StatsService.StatsAsOf.
func (s *statsService) StatsAsOf(ctx context.Context, userID uuid.UUID, asOf time.Time) (*rollup.Stats, error) {
	return s.statsAt(ctx, userID, asOf, s.clock.Now())
}

// statsAt computes the windows ending at asOf. now must be read from the clock
// exactly once per call so that asOf == now counts running sessions.
func (s *statsService) statsAt(ctx context.Context, userID uuid.UUID, asOf, now time.Time) (*rollup.Stats, error) {
	live := !asOf.Before(now)
	if live {
		asOf = now
	}
	asOf = asOf.In(s.location)
	from := rollup.Year.Start(asOf)

	var entries []*domain.TimeEntry
	err := s.repo.ReadTx(ctx, func(ctx context.Context, st store.Store) error {
		var err error
		entries, err = NewLedger(st).EntriesInRange(ctx, store.EntryQuery{UserID: userID}, from, asOf)
		return err
	})
	if err != nil {
		return nil, NewServiceError("get stats", "could not load time entries", err)
	}

	var (
		stats rollup.Stats
		seen  = make(map[uuid.UUID]struct{})
	)
	for _, w := range []rollup.Window{rollup.Week, rollup.Month, rollup.Year} {
		hours, anomalies := rollup.Hours(entries, w.Start(asOf), asOf, live)
		s.logAnomalies(ctx, anomalies, seen)
		switch w {
		case rollup.Week:
			stats.WeekHours = hours
		case rollup.Month:
			stats.MonthHours = hours
		case rollup.Year:
			stats.YearHours = hours
		}
	}
	return &stats, nil
}

// DailyTotals implements StatsService.DailyTotals.
func (s *statsService) DailyTotals(
	ctx context.Context,
	userID uuid.UUID,
	year int,
	month time.Month,
) ([]rollup.DailyTotal, error) {
	if month < time.January || month > time.December {
		return nil, NewServiceError("daily totals", "invalid month",
			domain.NewValidationError("month", fmt.Sprintf("%d is not between 1 and 12", month), domain.ErrValidation))
	}
	from, to := rollup.MonthRange(year, month, s.location)

	var entries []*domain.TimeEntry
	err := s.repo.ReadTx(ctx, func(ctx context.Context, st store.Store) error {
		var err error
		entries, err = NewLedger(st).EntriesInRange(ctx, store.EntryQuery{UserID: userID}, from, to)
		return err
	})
	if err != nil {
		return nil, NewServiceError("daily totals", "could not load time entries", err)
	}

	totals, anomalies := rollup.DailyTotals(entries, year, month, s.location)
	s.logAnomalies(ctx, anomalies, make(map[uuid.UUID]struct{}))
	return totals, nil
}

func (s *statsService) logAnomalies(ctx context.Context, anomalies []rollup.Anomaly, seen map[uuid.UUID]struct{}) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	for _, a := range anomalies {
		if _, ok := seen[a.EntryID]; ok {
			continue
		}
		seen[a.EntryID] = struct{}{}
		log.Warn("time entry excluded from rollup",
			slog.String("entry_id", a.EntryID.String()),
			slog.String("card_id", a.CardID.String()),
			slog.String("reason", a.Err.Error()))
	}
}
