package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/progressor-api/internal/api"
	apiMiddleware "github.com/phrazzld/progressor-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	cardHandler := api.NewCardHandler(app.trackerService, app.logger)
	statsHandler := api.NewStatsHandler(app.statsService, app.logger)
	skillHandler := api.NewSkillHandler(app.skillService, app.logger)

	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	healthHandler := api.NewHealthHandler(pinger, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiMiddleware.RequireUser)

		r.Route("/cards", func(r chi.Router) {
			r.Post("/", cardHandler.CreateCard)
			r.Get("/", cardHandler.ListCards)
			r.Get("/active", cardHandler.GetActiveCard)
			r.Get("/{id}", cardHandler.GetCard)
			r.Put("/{id}", cardHandler.UpdateCard)
			r.Delete("/{id}", cardHandler.DeleteCard)
			r.Post("/{id}/start", cardHandler.StartCard)
			r.Post("/{id}/stop", cardHandler.StopCard)
			r.Post("/{id}/complete", cardHandler.CompleteCard)
		})
		r.Post("/reconcile", cardHandler.Reconcile)

		r.Get("/stats", statsHandler.GetStats)
		r.Get("/stats/daily", statsHandler.GetDailyTotals)

		r.Route("/skills", func(r chi.Router) {
			r.Post("/", skillHandler.CreateSkill)
			r.Get("/", skillHandler.ListSkills)
			r.Get("/progress", skillHandler.GetSkillProgress)
			r.Get("/{id}", skillHandler.GetSkill)
			r.Put("/{id}", skillHandler.UpdateSkill)
			r.Delete("/{id}", skillHandler.DeleteSkill)
		})
		r.Get("/awards", skillHandler.ListAwards)
		r.Get("/awards/total", skillHandler.TotalExperience)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", skillHandler.CreateProject)
			r.Get("/", skillHandler.ListProjects)
			r.Get("/{id}", skillHandler.GetProject)
			r.Get("/{id}/skills", skillHandler.ProjectSkills)
			r.Post("/{id}/skills/{skillId}", skillHandler.LinkSkill)
			r.Delete("/{id}/skills/{skillId}", skillHandler.UnlinkSkill)
		})
	})

	r.Get("/health", healthHandler.Health)

	return r
}
