package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/phrazzld/progressor-api/internal/clock"
	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/domain/progression"
	"github.com/phrazzld/progressor-api/internal/events"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/platform/memory"
	"github.com/phrazzld/progressor-api/internal/platform/postgres"
	"github.com/phrazzld/progressor-api/internal/service"
	"github.com/phrazzld/progressor-api/internal/store"
)

// env is everything a command needs to talk to the tracker.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	clock  clock.Clock
	loc    *time.Location

	tracker service.TrackerService
	skills  service.SkillService
	stats   service.StatsService
}

// openEnv loads the configuration and connects to the configured store.
// Logs go to stderr so command output stays parseable.
func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.SetupWithWriter(cfg.Server, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	var (
		repo store.Repository
		db   *sql.DB
	)
	switch cfg.Database.Driver {
	case "memory":
		repo = memory.NewRepository(log)
	case "postgres":
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		repo = postgres.NewRepository(db, log)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}

	e, err := newEnv(cfg, repo, clock.System(), log)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	e.db = db
	return e, nil
}

// newEnv wires the services over repo the same way the server does.
func newEnv(cfg *config.Config, repo store.Repository, clk clock.Clock, log *slog.Logger) (*env, error) {
	loc, err := cfg.Tracker.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker timezone: %w", err)
	}

	prog := progression.NewServiceWithParams(progression.NewParams(progression.ParamsConfig{
		XPPerMinute:   cfg.Progression.XPPerMinute,
		OnTimeBonus:   cfg.Progression.OnTimeBonus,
		LevelConstant: cfg.Progression.LevelConstant,
	}))
	emitter := events.NewInMemoryEventEmitter(log)

	skills, err := service.NewSkillService(repo, prog, clk, log)
	if err != nil {
		return nil, err
	}
	emitter.RegisterHandler(skills)

	tracker, err := service.NewTrackerService(repo, prog, clk, emitter,
		service.TrackerOptions{DeletePolicy: cfg.Tracker.DeletePolicy}, log)
	if err != nil {
		return nil, err
	}

	stats, err := service.NewStatsService(repo, clk, loc, log)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:     cfg,
		logger:  log,
		clock:   clk,
		loc:     loc,
		tracker: tracker,
		skills:  skills,
		stats:   stats,
	}, nil
}

// Close releases the database connection, if any.
func (e *env) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}
