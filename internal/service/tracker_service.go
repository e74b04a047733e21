package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/store"
)

// CreateCardParams holds the input for creating a card.
type CreateCardParams struct {
	Title            string
	Description      string
	EstimatedMinutes int
	ProjectID        *uuid.UUID
}

// StartResult describes the outcome of Start.
type StartResult struct {
	Card  *domain.Card
	Entry *domain.TimeEntry

	// AlreadyActive is set when the card was already being tracked.
	// Nothing was written in that case and Entry is nil.
	AlreadyActive bool

	// Previous is the card that was stopped to make room for this one, if any.
	Previous *StopResult
}

// StopResult describes a closed tracking session.
type StopResult struct {
	Card    *domain.Card
	Entry   *domain.TimeEntry
	Minutes int

	// ClockSkew is set when the session ended before it started.
	// The entry is closed but contributes no minutes.
	ClockSkew bool
}

// CompleteResult describes the outcome of Complete.
type CompleteResult struct {
	Card    *domain.Card
	Stopped *StopResult
	Awards  []*domain.ExperienceAward
}

// ReconcileResult reports what Reconcile repaired.
type ReconcileResult struct {
	CardsChecked int                 `json:"cards_checked"`
	CardsUpdated int                 `json:"cards_updated"`
	Skewed       []uuid.UUID         `json:"skewed_entries"`
	Changes      []TrackedCorrection `json:"changes"`
}

// TrackedCorrection is one card whose cached minutes disagreed with the ledger.
type TrackedCorrection struct {
	CardID uuid.UUID `json:"card_id"`
	Before int       `json:"before"`
	After  int       `json:"after"`
}

// TrackerService drives the card lifecycle and the time entry ledger.
// Every mutation of one user's cards is serialized.
type TrackerService interface {
	CreateCard(ctx context.Context, userID uuid.UUID, params CreateCardParams) (*domain.Card, error)
	GetCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error)
	ListCards(ctx context.Context, userID uuid.UUID, filter store.CardFilter) ([]*domain.Card, error)
	UpdateCard(ctx context.Context, userID, cardID uuid.UUID, upd domain.CardUpdate) (*domain.Card, error)
	DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error

	// Start begins tracking the card, stopping the user's other active card first.
	Start(ctx context.Context, userID, cardID uuid.UUID) (*StartResult, error)

	// Stop closes the card's running session.
	Stop(ctx context.Context, userID, cardID uuid.UUID) (*StopResult, error)

	// Complete stops the card if needed, marks it done and awards experience
	// to every skill linked to its project.
	Complete(ctx context.Context, userID, cardID uuid.UUID) (*CompleteResult, error)

	// ActiveCard returns the user's active card, or nil.
	ActiveCard(ctx context.Context, userID uuid.UUID) (*domain.Card, error)

	// StopActive stops the user's active card. Returns nil when nothing was running.
	StopActive(ctx context.Context, userID uuid.UUID) (*StopResult, error)

	// StopAll stops every active card and returns how many were stopped.
	StopAll(ctx context.Context) (int, error)

	// Reconcile recomputes every card's tracked minutes from the ledger.
	Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error)
}

// TrackerOptions configures a TrackerService.
type TrackerOptions struct {
	// DeletePolicy is config.DeletePolicyCascade or config.DeletePolicyReject.
	DeletePolicy string
}

type trackerService struct {
	repo        store.Repository
	progression progression.Service
	clock       clock.Clock
	emitter     events.EventEmitter
	opts        TrackerOptions
	locks       *userLocks
	logger      *slog.Logger
}

var _ TrackerService = (*trackerService)(nil)

// NewTrackerService creates a TrackerService.
// It returns an error if any of the required dependencies are nil.
func NewTrackerService(
	repo store.Repository,
	prog progression.Service,
	clk clock.Clock,
	emitter events.EventEmitter,
	opts TrackerOptions,
	logger *slog.Logger,
) (TrackerService, error) {
	if repo == nil {
		return nil, domain.NewValidationError("repo", "cannot be nil", domain.ErrValidation)
	}
	if prog == nil {
		return nil, domain.NewValidationError("progression", "cannot be nil", domain.ErrValidation)
	}
	if clk == nil {
		return nil, domain.NewValidationError("clock", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	switch opts.DeletePolicy {
	case "":
		opts.DeletePolicy = config.DeletePolicyReject
	case config.DeletePolicyCascade, config.DeletePolicyReject:
	default:
		return nil, domain.NewValidationError("delete_policy", "unknown policy "+opts.DeletePolicy, domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &trackerService{
		repo:        repo,
		progression: prog,
		clock:       clk,
		emitter:     emitter,
		opts:        opts,
		locks:       newUserLocks(),
		logger:      logger.With(slog.String("component", "tracker_service")),
	}, nil
}

// CreateCard implements TrackerService.CreateCard.
func (s *trackerService) CreateCard(ctx context.Context, userID uuid.UUID, params CreateCardParams) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := domain.NewCard(userID, params.Title, params.Description, params.EstimatedMinutes, params.ProjectID, s.clock.Now())
	if err != nil {
		return nil, NewServiceError("create card", "invalid card", err)
	}

	err = s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		if params.ProjectID != nil {
			project, err := st.Projects().GetByID(ctx, *params.ProjectID)
			if err != nil {
				return err
			}
			if project.UserID != userID {
				return ErrNotOwned
			}
		}
		return st.Cards().Create(ctx, card)
	})
	if err != nil {
		return nil, NewServiceError("create card", "could not save card", err)
	}

	log.Info("card created",
		slog.String("card_id", card.ID.String()),
		slog.String("user_id", userID.String()))
	return card, nil
}

// GetCard implements TrackerService.GetCard.
func (s *trackerService) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.repo.Cards().GetByID(ctx, cardID)
	if err != nil {
		return nil, NewServiceError("get card", "could not load card", err)
	}
	if card.UserID != userID {
		return nil, NewServiceError("get card", "access denied", ErrNotOwned)
	}
	return card, nil
}

// ListCards implements TrackerService.ListCards. The filter's UserID is overridden.
func (s *trackerService) ListCards(ctx context.Context, userID uuid.UUID, filter store.CardFilter) ([]*domain.Card, error) {
	filter.UserID = userID
	cards, err := s.repo.Cards().List(ctx, filter)
	if err != nil {
		return nil, NewServiceError("list cards", "could not list cards", err)
	}
	return cards, nil
}

// UpdateCard implements TrackerService.UpdateCard.
func (s *trackerService) UpdateCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	upd domain.CardUpdate,
) (*domain.Card, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	var updated *domain.Card
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		card, err := s.loadOwned(ctx, st, userID, cardID)
		if err != nil {
			return err
		}
		if err := card.ApplyUpdate(upd, s.clock.Now()); err != nil {
			return err
		}
		if err := st.Cards().Update(ctx, card); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return nil, NewServiceError("update card", "could not update card", err)
	}
	return updated, nil
}

// DeleteCard implements TrackerService.DeleteCard.
// Active cards cannot be deleted. Cards with recorded time are removed together
// with their entries under the cascade policy and refused under reject.
func (s *trackerService) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.locks.lock(userID)
	defer unlock()

	var removed int
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		card, err := s.loadOwned(ctx, st, userID, cardID)
		if err != nil {
			return err
		}
		if card.IsActive {
			return domain.ErrCardActive
		}

		count, err := st.TimeEntries().CountByCard(ctx, cardID)
		if err != nil {
			return err
		}
		if count > 0 {
			if s.opts.DeletePolicy != config.DeletePolicyCascade {
				return fmt.Errorf("%w: card has %d time entries", domain.ErrConflict, count)
			}
			if removed, err = st.TimeEntries().DeleteByCard(ctx, cardID); err != nil {
				return err
			}
		}
		return st.Cards().Delete(ctx, cardID)
	})
	if err != nil {
		return NewServiceError("delete card", "could not delete card", err)
	}

	log.Info("card deleted",
		slog.String("card_id", cardID.String()),
		slog.Int("entries_removed", removed))
	return nil
}

// Start implements TrackerService.Start.
func (s *trackerService) Start(ctx context.Context, userID, cardID uuid.UUID) (*StartResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.locks.lock(userID)
	defer unlock()

	var (
		result  StartResult
		pending []*events.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		pending = pending[:0]

		card, err := s.loadOwned(ctx, st, userID, cardID)
		if err != nil {
			return err
		}
		if card.IsDone() {
			return domain.ErrCardDone
		}
		if card.IsActive {
			result = StartResult{Card: card, AlreadyActive: true}
			return nil
		}

		now := s.clock.Now()
		active, err := st.Cards().GetActive(ctx, userID)
		if err != nil {
			return err
		}
		var previous *StopResult
		if active != nil {
			if previous, err = s.stopCard(ctx, st, active, now); err != nil {
				return err
			}
			pending = append(pending, stoppedEvent(previous, now))
		}

		entry, err := NewLedger(st).OpenEntry(ctx, card.ID, userID, now)
		if err != nil {
			return err
		}
		if err := card.MarkStarted(now); err != nil {
			return err
		}
		if err := st.Cards().Update(ctx, card); err != nil {
			return err
		}

		result = StartResult{Card: card, Entry: entry, Previous: previous}
		pending = append(pending, events.NewEvent(events.CardStarted, userID, card.ID, card.ProjectID, 0, now))
		return nil
	})
	if err != nil {
		return nil, NewServiceError("start card", "could not start card", err)
	}

	if result.AlreadyActive {
		log.Debug("card already active", slog.String("card_id", cardID.String()))
		return &result, nil
	}

	log.Info("card started",
		slog.String("card_id", cardID.String()),
		slog.Bool("replaced_active", result.Previous != nil))
	s.emit(ctx, pending)
	return &result, nil
}

// Stop implements TrackerService.Stop.
func (s *trackerService) Stop(ctx context.Context, userID, cardID uuid.UUID) (*StopResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	var result *StopResult
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		card, err := s.loadOwned(ctx, st, userID, cardID)
		if err != nil {
			return err
		}
		if !card.IsActive {
			return domain.ErrCardNotActive
		}
		result, err = s.stopCard(ctx, st, card, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, NewServiceError("stop card", "could not stop card", err)
	}

	s.logStopped(ctx, result)
	s.emit(ctx, []*events.Event{stoppedEvent(result, result.Card.UpdatedAt)})
	return result, nil
}

// Complete implements TrackerService.Complete.
func (s *trackerService) Complete(ctx context.Context, userID, cardID uuid.UUID) (*CompleteResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.locks.lock(userID)
	defer unlock()

	var (
		result  CompleteResult
		pending []*events.Event
	)
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		pending = pending[:0]

		card, err := s.loadOwned(ctx, st, userID, cardID)
		if err != nil {
			return err
		}
		if card.IsDone() {
			return domain.ErrCardDone
		}

		now := s.clock.Now()
		var stopped *StopResult
		if card.IsActive {
			if stopped, err = s.stopCard(ctx, st, card, now); err != nil {
				return err
			}
			card = stopped.Card
			pending = append(pending, stoppedEvent(stopped, now))
		}

		if err := card.MarkCompleted(now); err != nil {
			return err
		}
		if err := st.Cards().Update(ctx, card); err != nil {
			return err
		}

		awards, err := s.awardExperience(ctx, st, card, now)
		if err != nil {
			return err
		}

		result = CompleteResult{Card: card, Stopped: stopped, Awards: awards}
		pending = append(pending, events.NewEvent(events.CardCompleted, userID, card.ID, card.ProjectID, 0, now))
		return nil
	})
	if err != nil {
		return nil, NewServiceError("complete card", "could not complete card", err)
	}

	log.Info("card completed",
		slog.String("card_id", cardID.String()),
		slog.Int("tracked_minutes", result.Card.TrackedMinutes),
		slog.Int("skills_awarded", len(result.Awards)))
	s.emit(ctx, pending)
	return &result, nil
}

// ActiveCard implements TrackerService.ActiveCard.
func (s *trackerService) ActiveCard(ctx context.Context, userID uuid.UUID) (*domain.Card, error) {
	card, err := s.repo.Cards().GetActive(ctx, userID)
	if err != nil {
		return nil, NewServiceError("get active card", "could not load active card", err)
	}
	return card, nil
}

// StopActive implements TrackerService.StopActive.
func (s *trackerService) StopActive(ctx context.Context, userID uuid.UUID) (*StopResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	var result *StopResult
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		active, err := st.Cards().GetActive(ctx, userID)
		if err != nil || active == nil {
			return err
		}
		result, err = s.stopCard(ctx, st, active, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, NewServiceError("stop active card", "could not stop active card", err)
	}
	if result == nil {
		return nil, nil
	}

	s.logStopped(ctx, result)
	s.emit(ctx, []*events.Event{stoppedEvent(result, result.Card.UpdatedAt)})
	return result, nil
}

// StopAll implements TrackerService.StopAll.
// It keeps going after a failure and returns the first error.
func (s *trackerService) StopAll(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	active, err := s.repo.Cards().ListActive(ctx)
	if err != nil {
		return 0, NewServiceError("stop all", "could not list active cards", err)
	}

	var (
		stopped  int
		firstErr error
	)
	for _, card := range active {
		res, err := s.StopActive(ctx, card.UserID)
		if err != nil {
			log.Error("failed to stop active card",
				slog.String("error", err.Error()),
				slog.String("user_id", card.UserID.String()))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res != nil {
			stopped++
		}
	}
	return stopped, firstErr
}

// Reconcile implements TrackerService.Reconcile.
func (s *trackerService) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.locks.lock(userID)
	defer unlock()

	var result ReconcileResult
	err := s.repo.InTx(ctx, func(ctx context.Context, st store.Store) error {
		result = ReconcileResult{Skewed: []uuid.UUID{}, Changes: []TrackedCorrection{}}

		cards, err := st.Cards().List(ctx, store.CardFilter{UserID: userID})
		if err != nil {
			return err
		}
		ledger := NewLedger(st)
		now := s.clock.Now()

		for _, card := range cards {
			result.CardsChecked++

			minutes, skewed, err := ledger.TrackedMinutes(ctx, card.ID)
			if err != nil {
				return err
			}
			for _, entry := range skewed {
				result.Skewed = append(result.Skewed, entry.ID)
			}
			if minutes == card.TrackedMinutes {
				continue
			}

			result.Changes = append(result.Changes, TrackedCorrection{
				CardID: card.ID,
				Before: card.TrackedMinutes,
				After:  minutes,
			})
			card.TrackedMinutes = minutes
			card.UpdatedAt = now
			if err := st.Cards().Update(ctx, card); err != nil {
				return err
			}
			result.CardsUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, NewServiceError("reconcile", "could not reconcile tracked minutes", err)
	}

	for _, change := range result.Changes {
		log.Warn("tracked minutes corrected from ledger",
			slog.String("card_id", change.CardID.String()),
			slog.Int("before", change.Before),
			slog.Int("after", change.After))
	}
	log.Info("reconcile finished",
		slog.Int("cards_checked", result.CardsChecked),
		slog.Int("cards_updated", result.CardsUpdated))
	return &result, nil
}

// loadOwned fetches and locks a card, checking that userID owns it.
func (s *trackerService) loadOwned(ctx context.Context, st store.Store, userID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := st.Cards().GetForUpdate(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, ErrNotOwned
	}
	return card, nil
}

// stopCard closes the card's open entry and clears its active flag.
// A skewed session is closed with zero minutes rather than failing the stop.
func (s *trackerService) stopCard(ctx context.Context, st store.Store, card *domain.Card, now time.Time) (*StopResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	ledger := NewLedger(st)
	result := &StopResult{}

	entry, err := ledger.ActiveEntryFor(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		log.Warn("active card has no open time entry",
			slog.String("card_id", card.ID.String()))
	} else {
		closed, err := ledger.CloseEntry(ctx, entry, now)
		if err != nil {
			return nil, err
		}
		result.Entry = closed

		d, err := closed.Duration()
		switch {
		case errors.Is(err, domain.ErrClockSkew):
			result.ClockSkew = true
			log.Warn("time entry ended before it started",
				slog.String("entry_id", closed.ID.String()),
				slog.Time("start", closed.StartTime),
				slog.Time("end", *closed.EndTime))
		case err != nil:
			return nil, err
		default:
			result.Minutes = domain.WholeMinutes(d)
		}
	}

	if err := card.MarkStopped(result.Minutes, now); err != nil {
		return nil, err
	}
	if err := st.Cards().Update(ctx, card); err != nil {
		return nil, err
	}
	result.Card = card
	return result, nil
}

// awardExperience grants the card's experience to each skill of its project
// and records one award per skill.
func (s *trackerService) awardExperience(
	ctx context.Context,
	st store.Store,
	card *domain.Card,
	now time.Time,
) ([]*domain.ExperienceAward, error) {
	awards := []*domain.ExperienceAward{}
	if card.ProjectID == nil {
		return awards, nil
	}

	linked, err := st.Projects().ListSkills(ctx, *card.ProjectID)
	if err != nil {
		return nil, err
	}
	award := s.progression.AwardFor(card)

	for _, l := range linked {
		skill, err := st.Skills().GetForUpdate(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		if err := skill.AddExperience(award.Experience, s.progression.LevelForXP, now); err != nil {
			return nil, err
		}
		if err := st.Skills().Update(ctx, skill); err != nil {
			return nil, err
		}

		record := &domain.ExperienceAward{
			ID:               uuid.New(),
			CardID:           card.ID,
			SkillID:          skill.ID,
			UserID:           card.UserID,
			TrackedMinutes:   card.TrackedMinutes,
			EstimatedMinutes: card.EstimatedMinutes,
			BonusApplied:     award.BonusApplied,
			Experience:       award.Experience,
			AwardedAt:        now.UTC(),
		}
		if err := st.Awards().Create(ctx, record); err != nil {
			return nil, err
		}
		awards = append(awards, record)
	}
	return awards, nil
}

// emit publishes committed transitions. Handler failures are logged and do not
// affect the already committed result.
func (s *trackerService) emit(ctx context.Context, evs []*events.Event) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	for _, ev := range evs {
		if err := s.emitter.EmitEvent(ctx, ev); err != nil {
			log.Error("event handler failed",
				slog.String("error", err.Error()),
				slog.String("event_type", ev.Type),
				slog.String("card_id", ev.CardID.String()))
		}
	}
}

func (s *trackerService) logStopped(ctx context.Context, res *StopResult) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Info("card stopped",
		slog.String("card_id", res.Card.ID.String()),
		slog.Int("minutes", res.Minutes),
		slog.Bool("clock_skew", res.ClockSkew))
}

func stoppedEvent(res *StopResult, at time.Time) *events.Event {
	return events.NewEvent(events.CardStopped, res.Card.UserID, res.Card.ID, res.Card.ProjectID, res.Minutes, at)
}
