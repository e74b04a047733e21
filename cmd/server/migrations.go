package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/progressor-api/internal/config"
	"github.com/phrazzld/progressor-api/internal/platform/postgres"
)

// handleMigrations runs a goose command against the configured database.
// The in-memory driver has no schema, so every command is refused for it.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.Driver != driverPostgres {
		return fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
	}

	logger.Info("Executing migrations", slog.String("command", command))

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("Error closing database connection", slog.String("error", cerr.Error()))
		}
	}()

	return postgres.Migrate(ctx, db, command, logger)
}
