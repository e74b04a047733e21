package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// UserEnvVar supplies the default for --user.
const UserEnvVar = "PROGRESSOR_USER"

// cli holds the global flags and the lazily opened environment.
type cli struct {
	configPath string
	user       string
	jsonOut    bool

	open func(ctx context.Context, configPath string) (*env, error)
	env  *env
}

func newCLI() *cli {
	return &cli{open: openEnv}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "progressctl",
		Short:         "Track time against cards and watch your skills level up",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.env == nil {
				return nil
			}
			return c.env.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./progressor.yaml if present)")
	flags.StringVarP(&c.user, "user", "u", os.Getenv(UserEnvVar), "user ID (env "+UserEnvVar+")")
	flags.BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		addCmd(c),
		listCmd(c),
		startCmd(c),
		stopCmd(c),
		completeCmd(c),
		statsCmd(c),
		dailyCmd(c),
		skillsCmd(c),
		reconcileCmd(c),
		migrateCmd(c),
	)
	return root
}

// services opens the environment on first use.
func (c *cli) services(cmd *cobra.Command) (*env, error) {
	if c.env != nil {
		return c.env, nil
	}
	e, err := c.open(cmd.Context(), c.configPath)
	if err != nil {
		return nil, err
	}
	c.env = e
	return e, nil
}

// userID parses --user.
func (c *cli) userID() (uuid.UUID, error) {
	if c.user == "" {
		return uuid.Nil, fmt.Errorf("a user is required: pass --user or set %s", UserEnvVar)
	}
	id, err := uuid.Parse(c.user)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user ID %q", c.user)
	}
	return id, nil
}

// setup returns the environment and caller for commands that act on a user.
func (c *cli) setup(cmd *cobra.Command) (*env, uuid.UUID, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, uuid.Nil, err
	}
	e, err := c.services(cmd)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return e, userID, nil
}

// print writes v as JSON when --json is set and calls text otherwise.
func (c *cli) print(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func parseCardID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid card ID %q", arg)
	}
	return id, nil
}
