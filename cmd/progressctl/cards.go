package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/service"
	"github.com/phrazzld/progressor-api/internal/store"
)

func addCmd(c *cli) *cobra.Command {
	var (
		estimate int
		project  string
		describe string
	)
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			params := service.CreateCardParams{
				Title:            args[0],
				Description:      describe,
				EstimatedMinutes: estimate,
			}
			if project != "" {
				id, err := uuid.Parse(project)
				if err != nil {
					return fmt.Errorf("invalid project ID %q", project)
				}
				params.ProjectID = &id
			}

			card, err := e.tracker.CreateCard(cmd.Context(), userID, params)
			if err != nil {
				return err
			}
			return c.print(cmd, card, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s  %s\n", card.ID, card.Title)
			})
		},
	}
	cmd.Flags().IntVarP(&estimate, "estimate", "e", 0, "estimated minutes")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID")
	cmd.Flags().StringVarP(&describe, "description", "d", "", "card description")
	return cmd
}

func listCmd(c *cli) *cobra.Command {
	var (
		status string
		active bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			var filter store.CardFilter
			if status != "" {
				s := domain.CardStatus(status)
				if !s.IsValid() {
					return fmt.Errorf("invalid status %q", status)
				}
				filter.Status = &s
			}
			if active {
				filter.Active = &active
			}

			cards, err := e.tracker.ListCards(cmd.Context(), userID, filter)
			if err != nil {
				return err
			}
			return c.print(cmd, cards, func(w io.Writer) {
				if len(cards) == 0 {
					fmt.Fprintln(w, "No cards")
					return
				}
				for _, card := range cards {
					marker := " "
					if card.IsActive {
						marker = "*"
					}
					fmt.Fprintf(w, "%s %s  %-11s %4d/%-4d min  %s\n",
						marker, card.ID, card.Status, card.TrackedMinutes, card.EstimatedMinutes, card.Title)
				}
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, in_progress, done)")
	cmd.Flags().BoolVar(&active, "active", false, "only the card being tracked")
	return cmd
}

func startCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "start [card-id]",
		Short: "Start tracking a card, stopping the one currently tracked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}
			cardID, err := parseCardID(args[0])
			if err != nil {
				return err
			}

			res, err := e.tracker.Start(cmd.Context(), userID, cardID)
			if err != nil {
				return err
			}
			return c.print(cmd, res, func(w io.Writer) {
				if res.Previous != nil {
					printStop(w, res.Previous)
				}
				if res.AlreadyActive {
					fmt.Fprintf(w, "Already tracking %s\n", res.Card.Title)
					return
				}
				fmt.Fprintf(w, "Tracking %s since %s\n", res.Card.Title, res.Entry.StartTime.Format("15:04"))
			})
		},
	}
}

func stopCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [card-id]",
		Short: "Stop tracking; without an argument stops the active card",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			var res *service.StopResult
			if len(args) == 1 {
				cardID, err := parseCardID(args[0])
				if err != nil {
					return err
				}
				res, err = e.tracker.Stop(cmd.Context(), userID, cardID)
				if err != nil {
					return err
				}
			} else {
				res, err = e.tracker.StopActive(cmd.Context(), userID)
				if err != nil {
					return err
				}
			}

			return c.print(cmd, res, func(w io.Writer) {
				if res == nil {
					fmt.Fprintln(w, "Nothing is being tracked")
					return
				}
				printStop(w, res)
			})
		},
	}
}

func completeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [card-id]",
		Short: "Mark a card done and award experience to its project's skills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}
			cardID, err := parseCardID(args[0])
			if err != nil {
				return err
			}

			res, err := e.tracker.Complete(cmd.Context(), userID, cardID)
			if err != nil {
				return err
			}
			return c.print(cmd, res, func(w io.Writer) {
				if res.Stopped != nil {
					printStop(w, res.Stopped)
				}
				fmt.Fprintf(w, "Completed %s in %d min\n", res.Card.Title, res.Card.TrackedMinutes)
				for _, award := range res.Awards {
					bonus := ""
					if award.BonusApplied {
						bonus = " (on time)"
					}
					fmt.Fprintf(w, "  +%d XP to skill %s%s\n", award.Experience, award.SkillID, bonus)
				}
			})
		},
	}
}

func printStop(w io.Writer, res *service.StopResult) {
	if res.ClockSkew {
		fmt.Fprintf(w, "Stopped %s: clock skew detected, no time recorded\n", res.Card.Title)
		return
	}
	fmt.Fprintf(w, "Stopped %s after %d min (total %d min)\n", res.Card.Title, res.Minutes, res.Card.TrackedMinutes)
}
