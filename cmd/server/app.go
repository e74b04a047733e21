package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/memory"
	"github.com/phrazzld/progressor-api/internal/platform/postgres"
	"github.com/phrazzld/progressor-api/internal/service"
	"github.com/phrazzld/progressor-api/internal/store"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil for the memory driver.
	db   *sql.DB
	repo store.Repository

	eventEmitter *events.InMemoryEventEmitter

	trackerService service.TrackerService
	skillService   service.SkillService
	statsService   service.StatsService
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.repo, app.db, err = openRepository(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if err := app.initServices(clock.System()); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("Application initialized successfully",
		slog.String("database_driver", cfg.Database.Driver))
	return app, nil
}

// openRepository connects the configured persistence backend.
func openRepository(
	ctx context.Context,
	cfg config.DatabaseConfig,
	logger *slog.Logger,
) (store.Repository, *sql.DB, error) {
	switch cfg.Driver {
	case driverMemory:
		logger.Warn("using in-memory store; data is lost on shutdown")
		return memory.NewRepository(logger), nil, nil
	case driverPostgres:
		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Database connection established",
			slog.Int("max_open_conns", cfg.MaxOpenConns))
		return postgres.NewRepository(db, logger), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// initServices builds the services on top of app.repo and wires the event
// handlers.
func (app *application) initServices(clk clock.Clock) error {
	cfg := app.config

	loc, err := cfg.Tracker.Location()
	if err != nil {
		return fmt.Errorf("failed to load tracker timezone: %w", err)
	}

	prog := progression.NewServiceWithParams(progression.NewParams(progression.ParamsConfig{
		XPPerMinute:   cfg.Progression.XPPerMinute,
		OnTimeBonus:   cfg.Progression.OnTimeBonus,
		LevelConstant: cfg.Progression.LevelConstant,
	}))

	app.eventEmitter = events.NewInMemoryEventEmitter(app.logger)

	app.skillService, err = service.NewSkillService(app.repo, prog, clk, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create skill service: %w", err)
	}
	app.eventEmitter.RegisterHandler(app.skillService)

	app.trackerService, err = service.NewTrackerService(
		app.repo,
		prog,
		clk,
		app.eventEmitter,
		service.TrackerOptions{DeletePolicy: cfg.Tracker.DeletePolicy},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create tracker service: %w", err)
	}

	app.statsService, err = service.NewStatsService(app.repo, clk, loc, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create stats service: %w", err)
	}

	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("Application shutdown completed")
}
