package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/platform/memory"
	"github.com/phrazzld/progressor-api/internal/store"
)

var testStart = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo    *memory.Repository
	clock   *clock.Fake
	tracker TrackerService
	skills  SkillService
	stats   StatsService
	logs    *logger.TestLogBuffer
	events  *eventLog
	user    uuid.UUID
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) HandleEvent(_ context.Context, event *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	log, buf := logger.NewTestLogger()
	repo := memory.NewRepository(log)
	clk := clock.NewFake(testStart)
	prog := progression.NewDefaultService()
	emitter := events.NewInMemoryEventEmitter(log)

	skills, err := NewSkillService(repo, prog, clk, log)
	require.NoError(t, err)
	tracker, err := NewTrackerService(repo, prog, clk, emitter, TrackerOptions{DeletePolicy: policy}, log)
	require.NoError(t, err)
	stats, err := NewStatsService(repo, clk, time.UTC, log)
	require.NoError(t, err)

	recorded := &eventLog{}
	emitter.RegisterHandler(skills)
	emitter.RegisterHandler(recorded)

	return &fixture{
		repo:    repo,
		clock:   clk,
		tracker: tracker,
		skills:  skills,
		stats:   stats,
		logs:    buf,
		events:  recorded,
		user:    uuid.New(),
	}
}

func (f *fixture) card(t *testing.T, title string, estimate int, projectID *uuid.UUID) *domain.Card {
	t.Helper()
	card, err := f.tracker.CreateCard(context.Background(), f.user, CreateCardParams{
		Title:            title,
		EstimatedMinutes: estimate,
		ProjectID:        projectID,
	})
	require.NoError(t, err)
	return card
}

func TestNewTrackerServiceValidation(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository(nil)
	prog := progression.NewDefaultService()
	clk := clock.NewFake(testStart)
	emitter := events.NewInMemoryEventEmitter(nil)

	tests := []struct {
		name    string
		build   func() (TrackerService, error)
		wantErr bool
	}{
		{"valid", func() (TrackerService, error) {
			return NewTrackerService(repo, prog, clk, emitter, TrackerOptions{}, nil)
		}, false},
		{"nil repo", func() (TrackerService, error) {
			return NewTrackerService(nil, prog, clk, emitter, TrackerOptions{}, nil)
		}, true},
		{"nil progression", func() (TrackerService, error) {
			return NewTrackerService(repo, nil, clk, emitter, TrackerOptions{}, nil)
		}, true},
		{"nil clock", func() (TrackerService, error) {
			return NewTrackerService(repo, prog, nil, emitter, TrackerOptions{}, nil)
		}, true},
		{"nil emitter", func() (TrackerService, error) {
			return NewTrackerService(repo, prog, clk, nil, TrackerOptions{}, nil)
		}, true},
		{"unknown policy", func() (TrackerService, error) {
			return NewTrackerService(repo, prog, clk, emitter, TrackerOptions{DeletePolicy: "archive"}, nil)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, err := tt.build()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestStartStopAccumulatesMinutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Write report", 60, nil)

	started, err := f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.False(t, started.AlreadyActive)
	assert.Nil(t, started.Previous)
	require.NotNil(t, started.Entry)
	assert.True(t, started.Entry.IsOpen())
	assert.True(t, started.Card.IsActive)
	assert.Equal(t, domain.CardStatusInProgress, started.Card.Status)

	f.clock.Advance(25*time.Minute + 30*time.Second)
	stopped, err := f.tracker.Stop(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stopped.Minutes)
	assert.False(t, stopped.ClockSkew)
	assert.False(t, stopped.Card.IsActive)
	assert.Equal(t, domain.CardStatusInProgress, stopped.Card.Status)
	assert.Equal(t, 25, stopped.Card.TrackedMinutes)

	_, err = f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	stopped, err = f.tracker.Stop(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, stopped.Card.TrackedMinutes)

	count, err := f.repo.TimeEntries().CountByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	active, err := f.tracker.ActiveCard(ctx, f.user)
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.Equal(t,
		[]string{events.CardStarted, events.CardStopped, events.CardStarted, events.CardStopped},
		f.events.types())
}

func TestStartAlreadyActiveIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Review", 0, nil)

	_, err := f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	again, err := f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyActive)
	assert.Nil(t, again.Entry)
	assert.True(t, again.Card.IsActive)

	count, err := f.repo.TimeEntries().CountByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{events.CardStarted}, f.events.types())
}

func TestStartStopsOtherActiveCard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	first := f.card(t, "First", 0, nil)
	second := f.card(t, "Second", 0, nil)

	_, err := f.tracker.Start(ctx, f.user, first.ID)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	res, err := f.tracker.Start(ctx, f.user, second.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Previous)
	assert.Equal(t, first.ID, res.Previous.Card.ID)
	assert.Equal(t, 5, res.Previous.Minutes)

	active, err := f.tracker.ActiveCard(ctx, f.user)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	reloaded, err := f.tracker.GetCard(ctx, f.user, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.Equal(t, 5, reloaded.TrackedMinutes)

	open, err := f.repo.TimeEntries().GetOpenByCard(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestLifecycleErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	idle := f.card(t, "Idle", 0, nil)
	done := f.card(t, "Done", 0, nil)
	_, err := f.tracker.Complete(ctx, f.user, done.ID)
	require.NoError(t, err)

	stranger := uuid.New()

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"stop inactive card", func() error {
			_, err := f.tracker.Stop(ctx, f.user, idle.ID)
			return err
		}, domain.ErrInvalidState},
		{"start done card", func() error {
			_, err := f.tracker.Start(ctx, f.user, done.ID)
			return err
		}, domain.ErrInvalidState},
		{"complete done card", func() error {
			_, err := f.tracker.Complete(ctx, f.user, done.ID)
			return err
		}, domain.ErrInvalidState},
		{"update done card", func() error {
			title := "New"
			_, err := f.tracker.UpdateCard(ctx, f.user, done.ID, domain.CardUpdate{Title: &title})
			return err
		}, domain.ErrInvalidState},
		{"start missing card", func() error {
			_, err := f.tracker.Start(ctx, f.user, uuid.New())
			return err
		}, domain.ErrNotFound},
		{"stop missing card", func() error {
			_, err := f.tracker.Stop(ctx, f.user, uuid.New())
			return err
		}, domain.ErrNotFound},
		{"start someone else's card", func() error {
			_, err := f.tracker.Start(ctx, stranger, idle.ID)
			return err
		}, ErrNotOwned},
		{"get someone else's card", func() error {
			_, err := f.tracker.GetCard(ctx, stranger, idle.ID)
			return err
		}, ErrNotOwned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsExpected(err))
		})
	}

	reloaded, err := f.tracker.GetCard(ctx, f.user, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusOpen, reloaded.Status)
	assert.False(t, reloaded.IsActive)
}

func TestStopWithClockSkew(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Skewed", 0, nil)

	_, err := f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	f.clock.Advance(-10 * time.Minute)

	res, err := f.tracker.Stop(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.True(t, res.ClockSkew)
	assert.Equal(t, 0, res.Minutes)
	assert.False(t, res.Card.IsActive)
	assert.Equal(t, 0, res.Card.TrackedMinutes)
	require.NotNil(t, res.Entry)
	assert.False(t, res.Entry.Valid())

	assert.Len(t, f.logs.EntriesWithMessage("time entry ended before it started"), 1)
}

func TestCompleteAwardsExperience(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()

	golang, err := f.skills.CreateSkill(ctx, f.user, "Go", "")
	require.NoError(t, err)
	writing, err := f.skills.CreateSkill(ctx, f.user, "Writing", "")
	require.NoError(t, err)
	project, err := f.skills.CreateProject(ctx, f.user, "Tracker")
	require.NoError(t, err)
	require.NoError(t, f.skills.LinkSkill(ctx, f.user, project.ID, golang.ID))
	require.NoError(t, f.skills.LinkSkill(ctx, f.user, project.ID, writing.ID))

	card := f.card(t, "Ship stats", 60, &project.ID)
	_, err = f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	f.clock.Advance(50 * time.Minute)

	res, err := f.tracker.Complete(ctx, f.user, card.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Stopped)
	assert.Equal(t, 50, res.Stopped.Minutes)
	assert.Equal(t, domain.CardStatusDone, res.Card.Status)
	assert.False(t, res.Card.IsActive)
	require.NotNil(t, res.Card.CompletedAt)
	assert.Equal(t, f.clock.Now(), *res.Card.CompletedAt)

	require.Len(t, res.Awards, 2)
	for _, award := range res.Awards {
		assert.Equal(t, 60, award.Experience)
		assert.True(t, award.BonusApplied)
		assert.Equal(t, 50, award.TrackedMinutes)
	}

	progress, err := f.skills.GetUserSkillProgress(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, progress, 2)
	for _, p := range progress {
		assert.Equal(t, 60, p.Experience)
		assert.Equal(t, 1, p.Level)
		assert.Equal(t, 40, p.ExperienceToNext)
		assert.Equal(t, 50, p.MinutesTracked)
	}

	awards, err := f.skills.ListAwards(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, awards, 2)

	total, err := f.skills.TotalExperience(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 120, total)

	assert.Equal(t,
		[]string{events.CardStarted, events.CardStopped, events.CardCompleted},
		f.events.types())
}

func TestCompleteWithoutProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Solo", 0, nil)

	res, err := f.tracker.Complete(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Stopped)
	assert.Empty(t, res.Awards)
	assert.True(t, res.Card.IsDone())
}

func TestUpdateCard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Draft", 30, nil)

	title := "  Final  "
	estimate := 45
	updated, err := f.tracker.UpdateCard(ctx, f.user, card.ID, domain.CardUpdate{Title: &title, EstimatedMinutes: &estimate})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, 45, updated.EstimatedMinutes)

	empty := ""
	_, err = f.tracker.UpdateCard(ctx, f.user, card.ID, domain.CardUpdate{Title: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)

	negative := -1
	_, err = f.tracker.UpdateCard(ctx, f.user, card.ID, domain.CardUpdate{EstimatedMinutes: &negative})
	assert.ErrorIs(t, err, domain.ErrValidation)

	reloaded, err := f.tracker.GetCard(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", reloaded.Title)
	assert.Equal(t, 45, reloaded.EstimatedMinutes)
}

func TestDeleteCard(t *testing.T) {
	t.Parallel()

	tracked := func(t *testing.T, f *fixture) *domain.Card {
		t.Helper()
		card := f.card(t, "Tracked", 0, nil)
		_, err := f.tracker.Start(context.Background(), f.user, card.ID)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		_, err = f.tracker.Stop(context.Background(), f.user, card.ID)
		require.NoError(t, err)
		return card
	}

	t.Run("reject refuses cards with entries", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.DeletePolicyReject)
		card := tracked(t, f)

		err := f.tracker.DeleteCard(context.Background(), f.user, card.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = f.tracker.GetCard(context.Background(), f.user, card.ID)
		assert.NoError(t, err)
	})

	t.Run("reject deletes untracked cards", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.DeletePolicyReject)
		card := f.card(t, "Untracked", 0, nil)

		require.NoError(t, f.tracker.DeleteCard(context.Background(), f.user, card.ID))
		_, err := f.tracker.GetCard(context.Background(), f.user, card.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("cascade removes entries", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.DeletePolicyCascade)
		card := tracked(t, f)

		require.NoError(t, f.tracker.DeleteCard(context.Background(), f.user, card.ID))
		count, err := f.repo.TimeEntries().CountByCard(context.Background(), card.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("active card cannot be deleted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, config.DeletePolicyCascade)
		card := f.card(t, "Running", 0, nil)
		_, err := f.tracker.Start(context.Background(), f.user, card.ID)
		require.NoError(t, err)

		err = f.tracker.DeleteCard(context.Background(), f.user, card.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestFailedStartRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	running := f.card(t, "Running", 0, nil)
	broken := f.card(t, "Broken", 0, nil)

	_, err := f.tracker.Start(ctx, f.user, running.ID)
	require.NoError(t, err)

	// A stray open entry makes opening a new session on broken fail after
	// running has already been stopped inside the transaction.
	require.NoError(t, f.repo.TimeEntries().Insert(ctx, domain.NewTimeEntry(broken.ID, f.user, testStart)))
	f.clock.Advance(3 * time.Minute)

	_, err = f.tracker.Start(ctx, f.user, broken.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	active, err := f.tracker.ActiveCard(ctx, f.user)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, running.ID, active.ID)
	assert.Zero(t, active.TrackedMinutes)

	open, err := f.repo.TimeEntries().GetOpenByCard(ctx, running.ID)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()
	card := f.card(t, "Drifted", 0, nil)
	clean := f.card(t, "Clean", 0, nil)

	_, err := f.tracker.Start(ctx, f.user, card.ID)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	_, err = f.tracker.Stop(ctx, f.user, card.ID)
	require.NoError(t, err)

	drifted, err := f.repo.Cards().GetByID(ctx, card.ID)
	require.NoError(t, err)
	drifted.TrackedMinutes = 999
	require.NoError(t, f.repo.Cards().Update(ctx, drifted))

	res, err := f.tracker.Reconcile(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CardsChecked)
	assert.Equal(t, 1, res.CardsUpdated)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, TrackedCorrection{CardID: card.ID, Before: 999, After: 20}, res.Changes[0])

	reloaded, err := f.tracker.GetCard(ctx, f.user, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.TrackedMinutes)

	untouched, err := f.tracker.GetCard(ctx, f.user, clean.ID)
	require.NoError(t, err)
	assert.Zero(t, untouched.TrackedMinutes)
}

func TestStopActiveAndStopAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()

	none, err := f.tracker.StopActive(ctx, f.user)
	require.NoError(t, err)
	assert.Nil(t, none)

	mine := f.card(t, "Mine", 0, nil)
	_, err = f.tracker.Start(ctx, f.user, mine.ID)
	require.NoError(t, err)

	other := uuid.New()
	theirs, err := f.tracker.CreateCard(ctx, other, CreateCardParams{Title: "Theirs"})
	require.NoError(t, err)
	_, err = f.tracker.Start(ctx, other, theirs.ID)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	stopped, err := f.tracker.StopAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stopped)

	active, err := f.repo.Cards().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	reloaded, err := f.tracker.GetCard(ctx, other, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.TrackedMinutes)
}

func TestConcurrentStartKeepsOneActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()

	cards := make([]*domain.Card, 8)
	for i := range cards {
		cards[i] = f.card(t, "Card", 0, nil)
	}

	var wg sync.WaitGroup
	for _, card := range cards {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.tracker.Start(ctx, f.user, id)
			assert.NoError(t, err)
		}(card.ID)
	}
	wg.Wait()

	active, err := f.tracker.ListCards(ctx, f.user, store.CardFilter{Active: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, active, 1)

	entries, err := f.repo.TimeEntries().Query(ctx, store.EntryQuery{UserID: f.user})
	require.NoError(t, err)
	assert.Len(t, entries, len(cards))

	open := 0
	for _, e := range entries {
		if e.IsOpen() {
			open++
			assert.Equal(t, active[0].ID, e.CardID)
		}
	}
	assert.Equal(t, 1, open)
	assert.Zero(t, f.tracker.(*trackerService).locks.size())
}

func TestCreateCardInForeignProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DeletePolicyReject)
	ctx := context.Background()

	project, err := f.skills.CreateProject(ctx, uuid.New(), "Not mine")
	require.NoError(t, err)

	_, err = f.tracker.CreateCard(ctx, f.user, CreateCardParams{Title: "Sneaky", ProjectID: &project.ID})
	assert.ErrorIs(t, err, ErrNotOwned)

	missing := uuid.New()
	_, err = f.tracker.CreateCard(ctx, f.user, CreateCardParams{Title: "Lost", ProjectID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.tracker.CreateCard(ctx, f.user, CreateCardParams{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func boolPtr(b bool) *bool { return &b }
