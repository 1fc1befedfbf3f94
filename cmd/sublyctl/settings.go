package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"subly/internal/core"
	"subly/internal/services"
)

func newSettingsCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change reminder settings",
	}

	cmd.AddCommand(
		newSettingsShowCmd(c),
		newSettingsSetCmd(c),
	)

	return cmd
}

func newSettingsShowCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show reminder settings and the next scheduled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			return c.printPreferences(cmd, p)
		},
	}
}

func newSettingsSetCmd(c *ctl) *cobra.Command {
	var (
		enabled     bool
		morning     string
		evening     string
		defaultDays int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change reminder settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			var in services.PreferencesInput
			if flags.Changed("enabled") {
				in.Enabled = &enabled
			}
			var err error
			if in.MorningTime, err = timeFlag(flags, "morning", morning); err != nil {
				return err
			}
			if in.EveningTime, err = timeFlag(flags, "evening", evening); err != nil {
				return err
			}
			if flags.Changed("default-days") {
				in.DefaultReminderDays = &defaultDays
			}

			p, err := c.app.Settings.Update(cmd.Context(), in)
			if err != nil {
				return describe(err)
			}
			return c.printPreferences(cmd, p)
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "turn reminder notifications on or off")
	cmd.Flags().StringVar(&morning, "morning", "", "morning reminder time HH:MM")
	cmd.Flags().StringVar(&evening, "evening", "", "evening reminder time HH:MM")
	cmd.Flags().IntVar(&defaultDays, "default-days", core.DefaultReminderDaysBefore, "reminder days for new subscriptions")
	return cmd
}

func timeFlag(flags *pflag.FlagSet, name, value string) (*core.TimeOfDay, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	t, err := core.ParseTimeOfDay(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

type preferencesView struct {
	core.NotificationPreferences
	NextRuns map[string]time.Time `json:"nextRuns,omitempty"`
}

// printPreferences shows p with the times the scheduler would fire next.
func (c *ctl) printPreferences(cmd *cobra.Command, p core.NotificationPreferences) error {
	view := preferencesView{NotificationPreferences: p, NextRuns: nextRuns(c, p)}
	return c.emit(cmd, view, func() string {
		return renderPreferences(c.styles, p, view.NextRuns)
	})
}

// nextRuns loads p into an unstarted scheduler to read the next fire times.
func nextRuns(c *ctl, p core.NotificationPreferences) map[string]time.Time {
	sched, err := c.app.NewScheduler()
	if err != nil {
		return nil
	}
	sched.Apply(p)

	out := make(map[string]time.Time, 2)
	for _, slot := range []string{services.SlotMorning, services.SlotEvening} {
		if next, ok := sched.Next(slot); ok {
			out[slot] = next
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
