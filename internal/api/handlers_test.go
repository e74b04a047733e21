package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/domain/rollup"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/platform/memory"
	"github.com/phrazzld/progressor-api/internal/service"
)

var handlerNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	router http.Handler
	clock  *clock.Fake
	user   uuid.UUID
}

func newTestAPI(t *testing.T, policy string) *testAPI {
	t.Helper()

	log, _ := logger.NewTestLogger()
	repo := memory.NewRepository(log)
	clk := clock.NewFake(handlerNow)
	prog := progression.NewDefaultService()
	emitter := events.NewInMemoryEventEmitter(log)

	skills, err := service.NewSkillService(repo, prog, clk, log)
	require.NoError(t, err)
	tracker, err := service.NewTrackerService(repo, prog, clk, emitter,
		service.TrackerOptions{DeletePolicy: policy}, log)
	require.NoError(t, err)
	stats, err := service.NewStatsService(repo, clk, time.UTC, log)
	require.NoError(t, err)
	emitter.RegisterHandler(skills)

	cards := NewCardHandler(tracker, log)
	statsHandler := NewStatsHandler(stats, log)
	skillHandler := NewSkillHandler(skills, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/cards", cards.CreateCard)
		r.Get("/cards", cards.ListCards)
		r.Get("/cards/active", cards.GetActiveCard)
		r.Get("/cards/{id}", cards.GetCard)
		r.Put("/cards/{id}", cards.UpdateCard)
		r.Delete("/cards/{id}", cards.DeleteCard)
		r.Post("/cards/{id}/start", cards.StartCard)
		r.Post("/cards/{id}/stop", cards.StopCard)
		r.Post("/cards/{id}/complete", cards.CompleteCard)
		r.Post("/reconcile", cards.Reconcile)

		r.Get("/stats", statsHandler.GetStats)
		r.Get("/stats/daily", statsHandler.GetDailyTotals)

		r.Post("/skills", skillHandler.CreateSkill)
		r.Get("/skills", skillHandler.ListSkills)
		r.Get("/skills/progress", skillHandler.GetSkillProgress)
		r.Get("/skills/{id}", skillHandler.GetSkill)
		r.Put("/skills/{id}", skillHandler.UpdateSkill)
		r.Delete("/skills/{id}", skillHandler.DeleteSkill)
		r.Get("/awards", skillHandler.ListAwards)
		r.Get("/awards/total", skillHandler.TotalExperience)

		r.Post("/projects", skillHandler.CreateProject)
		r.Get("/projects", skillHandler.ListProjects)
		r.Get("/projects/{id}", skillHandler.GetProject)
		r.Get("/projects/{id}/skills", skillHandler.ProjectSkills)
		r.Post("/projects/{id}/skills/{skillId}", skillHandler.LinkSkill)
		r.Delete("/projects/{id}/skills/{skillId}", skillHandler.UnlinkSkill)
	})

	return &testAPI{router: r, clock: clk, user: uuid.New()}
}

// do sends a request as the given user. A nil user sends it anonymously.
func (a *testAPI) do(t *testing.T, user *uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(shared.WithUserID(req.Context(), *user))
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) as(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, &a.user, method, path, body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createCard(t *testing.T, title string, estimate int, projectID *uuid.UUID) CardResponse {
	t.Helper()
	rec := a.as(t, http.MethodPost, "/api/cards", CreateCardRequest{
		Title:            title,
		EstimatedMinutes: estimate,
		ProjectID:        projectID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CardResponse](t, rec)
}

func TestCardLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, config.DeletePolicyReject)

	card := a.createCard(t, "Write report", 60, nil)
	assert.Equal(t, string(domain.CardStatusOpen), card.Status)
	assert.False(t, card.IsActive)

	rec := a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[StartResponse](t, rec)
	assert.True(t, started.Card.IsActive)
	assert.Equal(t, string(domain.CardStatusInProgress), started.Card.Status)
	require.NotNil(t, started.Entry)
	assert.Nil(t, started.Entry.EndTime)

	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[StartResponse](t, rec).AlreadyActive)

	rec = a.as(t, http.MethodGet, "/api/cards/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, card.ID, decode[CardResponse](t, rec).ID)

	a.clock.Advance(25 * time.Minute)
	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stopped := decode[StopResponse](t, rec)
	assert.Equal(t, 25, stopped.Minutes)
	assert.Equal(t, 25, stopped.Card.TrackedMinutes)
	assert.False(t, stopped.ClockSkew)

	rec = a.as(t, http.MethodGet, "/api/cards/active", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Card is not being tracked", decode[shared.ErrorResponse](t, rec).Error)

	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode[CompleteResponse](t, rec)
	assert.Equal(t, string(domain.CardStatusDone), completed.Card.Status)
	assert.NotNil(t, completed.Card.CompletedAt)
	assert.Nil(t, completed.Stopped)
	assert.Empty(t, completed.Awards)

	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Card is already done", decode[shared.ErrorResponse](t, rec).Error)
}

func TestStartAutoStopsPreviousCard(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")

	first := a.createCard(t, "First", 0, nil)
	second := a.createCard(t, "Second", 0, nil)

	require.Equal(t, http.StatusCreated, a.as(t, http.MethodPost, "/api/cards/"+first.ID.String()+"/start", nil).Code)
	a.clock.Advance(10 * time.Minute)

	rec := a.as(t, http.MethodPost, "/api/cards/"+second.ID.String()+"/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[StartResponse](t, rec)
	require.NotNil(t, res.Stopped)
	assert.Equal(t, first.ID, res.Stopped.Card.ID)
	assert.Equal(t, 10, res.Stopped.Minutes)
	assert.False(t, res.Stopped.Card.IsActive)

	rec = a.as(t, http.MethodGet, "/api/cards?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[[]CardResponse](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestCreateCardValidation(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{"missing title", map[string]any{"estimated_minutes": 10}, "Invalid title: required field"},
		{"negative estimate", map[string]any{"title": "x", "estimated_minutes": -5}, "Invalid estimated_minutes: must not be negative"},
		{"estimate overflows integer column", map[string]any{"title": "x", "estimated_minutes": 3000000000}, "Invalid estimated_minutes: too large"},
		{"unknown field", map[string]any{"title": "x", "priority": 1}, ""},
		{"empty body", nil, "Request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := a.as(t, http.MethodPost, "/api/cards", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode[shared.ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestUpdateCardRejectsOversizedEstimate(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")
	card := a.createCard(t, "Mine", 30, nil)

	rec := a.as(t, http.MethodPut, "/api/cards/"+card.ID.String(), map[string]any{"estimated_minutes": 3000000000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid estimated_minutes: too large", decode[shared.ErrorResponse](t, rec).Error)
}

func TestCardRequestErrors(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")
	card := a.createCard(t, "Mine", 0, nil)
	stranger := uuid.New()

	tests := []struct {
		name   string
		user   *uuid.UUID
		method string
		path   string
		want   int
	}{
		{"anonymous", nil, http.MethodGet, "/api/cards", http.StatusUnauthorized},
		{"bad id", &a.user, http.MethodGet, "/api/cards/not-a-uuid", http.StatusBadRequest},
		{"unknown card", &a.user, http.MethodGet, "/api/cards/" + uuid.NewString(), http.StatusNotFound},
		{"foreign card", &stranger, http.MethodGet, "/api/cards/" + card.ID.String(), http.StatusForbidden},
		{"foreign start", &stranger, http.MethodPost, "/api/cards/" + card.ID.String() + "/start", http.StatusForbidden},
		{"bad status filter", &a.user, http.MethodGet, "/api/cards?status=archived", http.StatusBadRequest},
		{"bad active filter", &a.user, http.MethodGet, "/api/cards?active=maybe", http.StatusBadRequest},
		{"bad project filter", &a.user, http.MethodGet, "/api/cards?project_id=nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := a.do(t, tt.user, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateAndDeleteCard(t *testing.T) {
	t.Parallel()

	t.Run("update keeps omitted fields", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, "")
		card := a.createCard(t, "Draft", 30, nil)

		rec := a.as(t, http.MethodPut, "/api/cards/"+card.ID.String(), map[string]any{"title": "Final"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[CardResponse](t, rec)
		assert.Equal(t, "Final", updated.Title)
		assert.Equal(t, 30, updated.EstimatedMinutes)
	})

	t.Run("reject policy refuses tracked cards", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, config.DeletePolicyReject)
		card := a.createCard(t, "Tracked", 0, nil)
		require.Equal(t, http.StatusCreated, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil).Code)
		a.clock.Advance(5 * time.Minute)
		require.Equal(t, http.StatusOK, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/stop", nil).Code)

		rec := a.as(t, http.MethodDelete, "/api/cards/"+card.ID.String(), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Cannot delete: card has 1 time entries", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("cascade policy removes tracked cards", func(t *testing.T) {
		t.Parallel()
		a := newTestAPI(t, config.DeletePolicyCascade)
		card := a.createCard(t, "Tracked", 0, nil)
		require.Equal(t, http.StatusCreated, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil).Code)
		a.clock.Advance(5 * time.Minute)
		require.Equal(t, http.StatusOK, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/stop", nil).Code)

		assert.Equal(t, http.StatusNoContent, a.as(t, http.MethodDelete, "/api/cards/"+card.ID.String(), nil).Code)
		assert.Equal(t, http.StatusNotFound, a.as(t, http.MethodGet, "/api/cards/"+card.ID.String(), nil).Code)
	})
}

func TestStatsEndpoints(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")
	card := a.createCard(t, "Study", 0, nil)

	require.Equal(t, http.StatusCreated, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil).Code)
	a.clock.Advance(90 * time.Minute)
	require.Equal(t, http.StatusOK, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/stop", nil).Code)

	rec := a.as(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[rollup.Stats](t, rec)
	assert.InDelta(t, 1.5, stats.WeekHours, 1e-9)
	assert.InDelta(t, 1.5, stats.MonthHours, 1e-9)
	assert.InDelta(t, 1.5, stats.YearHours, 1e-9)

	rec = a.as(t, http.MethodGet, "/api/stats?as_of=2025-03-15T11:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, decode[rollup.Stats](t, rec).WeekHours)

	rec = a.as(t, http.MethodGet, "/api/stats?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.as(t, http.MethodGet, "/api/stats/daily?month=2025-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	daily := decode[DailyTotalsResponse](t, rec)
	assert.Equal(t, "2025-03", daily.Month)
	require.Len(t, daily.Days, 31)
	assert.Equal(t, "2025-03-15", daily.Days[14].Date)
	assert.Equal(t, 90, daily.Days[14].TotalMinutes)

	rec = a.as(t, http.MethodGet, "/api/stats/daily?month=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkillsProjectsAndAwards(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")

	rec := a.as(t, http.MethodPost, "/api/skills", CreateSkillRequest{Name: "Go"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	skill := decode[domain.Skill](t, rec)
	assert.Equal(t, 1, skill.Level)

	rec = a.as(t, http.MethodPost, "/api/projects", CreateProjectRequest{Name: "Backend"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[domain.Project](t, rec)

	linkPath := "/api/projects/" + project.ID.String() + "/skills/" + skill.ID.String()
	require.Equal(t, http.StatusNoContent, a.as(t, http.MethodPost, linkPath, nil).Code)

	rec = a.as(t, http.MethodGet, "/api/projects/"+project.ID.String()+"/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	linked := decode[[]domain.Skill](t, rec)
	require.Len(t, linked, 1)
	assert.Equal(t, skill.ID, linked[0].ID)

	card := a.createCard(t, "Handler", 60, &project.ID)
	require.Equal(t, http.StatusCreated, a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/start", nil).Code)
	a.clock.Advance(50 * time.Minute)

	rec = a.as(t, http.MethodPost, "/api/cards/"+card.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode[CompleteResponse](t, rec)
	require.NotNil(t, completed.Stopped)
	assert.Equal(t, 50, completed.Stopped.Minutes)
	require.Len(t, completed.Awards, 1)
	assert.Equal(t, 60, completed.Awards[0].Experience)
	assert.True(t, completed.Awards[0].BonusApplied)

	rec = a.as(t, http.MethodGet, "/api/skills/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[[]domain.UserSkillProgress](t, rec)
	require.Len(t, progress, 1)
	assert.Equal(t, 60, progress[0].Experience)
	assert.Equal(t, 50, progress[0].MinutesTracked)
	assert.Equal(t, 40, progress[0].ExperienceToNext)

	rec = a.as(t, http.MethodGet, "/api/awards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.ExperienceAward](t, rec), 1)

	rec = a.as(t, http.MethodGet, "/api/awards/total", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, decode[TotalExperienceResponse](t, rec).Experience)

	rec = a.as(t, http.MethodPut, "/api/skills/"+skill.ID.String(), map[string]any{"name": "Golang"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Golang", decode[domain.Skill](t, rec).Name)

	require.Equal(t, http.StatusNoContent, a.as(t, http.MethodDelete, linkPath, nil).Code)
	rec = a.as(t, http.MethodGet, "/api/projects/"+project.ID.String()+"/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.Skill](t, rec))

	stranger := uuid.New()
	rec = a.do(t, &stranger, http.MethodGet, "/api/skills/"+skill.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.as(t, http.MethodPost, "/api/projects/"+project.ID.String()+"/skills/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")

	for _, path := range []string{"/api/cards", "/api/skills", "/api/projects", "/api/awards", "/api/skills/progress"} {
		rec := a.as(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, "")
	a.createCard(t, "Clean", 0, nil)

	rec := a.as(t, http.MethodPost, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.ReconcileResult](t, rec)
	assert.Equal(t, 1, res.CardsChecked)
	assert.Zero(t, res.CardsUpdated)
}

func TestHandlerConstructorsPanicOnNilService(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewCardHandler(nil, nil) })
	assert.Panics(t, func() { NewStatsHandler(nil, nil) })
	assert.Panics(t, func() { NewSkillHandler(nil, nil) })
}
