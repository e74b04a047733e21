package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/progressor-api/internal/platform/postgres"
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [command]",
		Short:     "Run a database migration command",
		Long:      "Run a goose migration command against the configured postgres database.\n\nCommands: " + strings.Join(postgres.MigrationCommands, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.services(cmd)
			if err != nil {
				return err
			}
			if e.db == nil {
				return fmt.Errorf("migrations require the postgres driver, got %q", e.cfg.Database.Driver)
			}
			if err := postgres.Migrate(cmd.Context(), e.db, args[0], e.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}
}
