package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/progressor-api/internal/domain/rollup"
)

func statsCmd(c *cli) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show hours tracked this week, month and year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			var stats *rollup.Stats
			if asOf != "" {
				at, perr := time.Parse(time.RFC3339, asOf)
				if perr != nil {
					return fmt.Errorf("invalid --as-of %q: want RFC 3339", asOf)
				}
				stats, err = e.stats.StatsAsOf(cmd.Context(), userID, at)
			} else {
				stats, err = e.stats.GetStats(cmd.Context(), userID)
			}
			if err != nil {
				return err
			}

			return c.print(cmd, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Week:  %6.2f h\n", stats.WeekHours)
				fmt.Fprintf(w, "Month: %6.2f h\n", stats.MonthHours)
				fmt.Fprintf(w, "Year:  %6.2f h\n", stats.YearHours)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "end of the windows (RFC 3339), default now")
	return cmd
}

func dailyCmd(c *cli) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show minutes tracked per day of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			var m time.Time
			if month == "" {
				m = e.clock.Now().In(e.loc)
			} else if m, err = time.Parse("2006-01", month); err != nil {
				return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
			}

			days, err := e.stats.DailyTotals(cmd.Context(), userID, m.Year(), m.Month())
			if err != nil {
				return err
			}
			return c.print(cmd, days, func(w io.Writer) {
				for _, d := range days {
					if d.TotalMinutes == 0 {
						continue
					}
					fmt.Fprintf(w, "%s  %4d min\n", d.Date, d.TotalMinutes)
				}
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM, default the current month")
	return cmd
}

func skillsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "Show level and experience of every skill",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			progress, err := e.skills.GetUserSkillProgress(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return c.print(cmd, progress, func(w io.Writer) {
				if len(progress) == 0 {
					fmt.Fprintln(w, "No skills")
					return
				}
				for _, p := range progress {
					fmt.Fprintf(w, "%-20s level %2d  %6d XP  %5d to next  %5d min\n",
						p.Name, p.Level, p.Experience, p.ExperienceToNext, p.MinutesTracked)
				}
			})
		},
	}
}

func reconcileCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute tracked minutes of every card from its time entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, userID, err := c.setup(cmd)
			if err != nil {
				return err
			}

			res, err := e.tracker.Reconcile(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return c.print(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "Checked %d cards, corrected %d\n", res.CardsChecked, res.CardsUpdated)
				for _, ch := range res.Changes {
					fmt.Fprintf(w, "  %s: %d -> %d min\n", ch.CardID, ch.Before, ch.After)
				}
				if len(res.Skewed) > 0 {
					fmt.Fprintf(w, "%d time entries end before they start\n", len(res.Skewed))
				}
			})
		},
	}
}
