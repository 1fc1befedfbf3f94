package main

import (
	"github.com/spf13/cobra"

	"subly/internal/services"
)

func newStatsCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"dashboard"},
		Short:   "Show spending totals and the next bills",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := c.app.Dashboard.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd, d, func() string {
				return renderDashboard(c.styles, d, c.app.Config.Today())
			})
		},
	}
}

func newRemindCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for subscriptions due now",
		Long:  "remind evaluates every active subscription against its reminder window and delivers the due notifications, the same pass the scheduler runs at the morning and evening times.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Reminders.Run(cmd.Context(), services.SlotManual)
			if err != nil {
				return err
			}
			return c.emit(cmd, res, func() string {
				return renderRunResult(c.styles, res)
			})
		},
	}
}
