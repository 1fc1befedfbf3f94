package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"subly/internal/core"
	"subly/internal/services"
)

func newSubCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscription", "subs"},
		Short:   "Manage subscriptions",
	}

	cmd.AddCommand(
		newSubListCmd(c),
		newSubUpcomingCmd(c),
		newSubShowCmd(c),
		newSubAddCmd(c),
		newSubEditCmd(c),
		newSubPaidCmd(c),
		newSubActiveCmd(c, "pause", "Stop tracking a subscription without deleting it", false),
		newSubActiveCmd(c, "resume", "Resume a paused subscription", true),
		newSubDeleteCmd(c),
	)

	return cmd
}

func newSubListCmd(c *ctl) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions by next billing date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := c.app.Subscriptions.List(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			return c.emit(cmd, subs, func() string {
				return renderSubscriptions(c.styles, subs, c.app.Config.Today())
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active subscriptions")
	return cmd
}

func newSubUpcomingCmd(c *ctl) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List active subscriptions billed within the next days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := c.app.Subscriptions.Upcoming(cmd.Context(), days)
			if err != nil {
				return err
			}
			return c.emit(cmd, subs, func() string {
				return renderSubscriptions(c.styles, subs, c.app.Config.Today())
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", core.DashboardWindowDays, "look-ahead window in days")
	return cmd
}

func newSubShowCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := c.app.Subscriptions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(cmd, sub, func() string {
				return renderSubscription(c.styles, sub, c.app.Config.Today())
			})
		},
	}
}

// subFlags are the editable fields shared by add and edit.
type subFlags struct {
	name          string
	category      string
	amount        string
	currency      string
	frequency     string
	start         string
	paymentMethod string
	notes         string
	reminderDays  int
}

func (f *subFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "display name")
	fs.StringVar(&f.category, "type", string(core.OtherType), "category, e.g. streaming, software")
	fs.StringVar(&f.amount, "amount", "", "amount per billing period, e.g. 9.99")
	fs.StringVar(&f.currency, "currency", core.DefaultCurrency, "ISO currency code")
	fs.StringVar(&f.frequency, "frequency", string(core.Monthly), "weekly, monthly, quarterly, semi-annual, annual or custom")
	fs.StringVar(&f.start, "start", "", "first billing date YYYY-MM-DD (default today)")
	fs.StringVar(&f.paymentMethod, "payment-method", "", "payment method ID")
	fs.StringVar(&f.notes, "notes", "", "free-form notes")
	fs.IntVar(&f.reminderDays, "remind", core.DefaultReminderDaysBefore, "days before billing to send a reminder")
}

// apply copies the flags the user set onto in. On add every flag counts as
// set so defaults apply.
func (f *subFlags) apply(fs *pflag.FlagSet, in *services.SubscriptionInput, all bool) error {
	set := func(name string) bool { return all || fs.Changed(name) }

	if set("name") {
		in.Name = f.name
	}
	if set("type") {
		in.Category = core.Category(parseEnum(f.category))
	}
	if set("amount") {
		in.Amount = services.Decimal(f.amount)
	}
	if set("currency") {
		in.Currency = f.currency
	}
	if set("frequency") {
		in.Frequency = core.Frequency(parseEnum(f.frequency))
	}
	if set("start") && f.start != "" {
		d, err := core.ParseDate(f.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		in.StartDate = d
	}
	if set("payment-method") {
		in.PaymentMethodID = f.paymentMethod
	}
	if set("notes") {
		in.Notes = f.notes
	}
	if fs.Changed("remind") {
		days := f.reminderDays
		in.ReminderDaysBefore = &days
	}
	return nil
}

func newSubAddCmd(c *ctl) *cobra.Command {
	var f subFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := services.SubscriptionInput{StartDate: c.app.Config.Today()}
			if err := f.apply(cmd.Flags(), &in, true); err != nil {
				return err
			}
			sub, err := c.app.Subscriptions.Create(cmd.Context(), in)
			if err != nil {
				return describe(err)
			}
			return c.emit(cmd, sub, func() string {
				return "Added " + c.styles.title.Render(sub.Name) + " (" + sub.ID + "), next bill " + sub.NextBillingDate.String()
			})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newSubEditCmd(c *ctl) *cobra.Command {
	var f subFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := c.app.Subscriptions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in := inputFromSubscription(current)
			if err := f.apply(cmd.Flags(), &in, false); err != nil {
				return err
			}
			sub, err := c.app.Subscriptions.Update(cmd.Context(), args[0], in)
			if err != nil {
				return describe(err)
			}
			return c.emit(cmd, sub, func() string {
				return renderSubscription(c.styles, sub, c.app.Config.Today())
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func inputFromSubscription(s core.Subscription) services.SubscriptionInput {
	active := s.Active
	days := s.ReminderDaysBefore
	return services.SubscriptionInput{
		Name:               s.Name,
		Category:           s.Category,
		Amount:             services.Decimal(core.FormatCents(s.Amount.Cents)),
		Currency:           s.Amount.Currency,
		Frequency:          s.Frequency,
		StartDate:          s.StartDate,
		PaymentMethodID:    s.PaymentMethodID,
		Notes:              s.Notes,
		Active:             &active,
		ReminderDaysBefore: &days,
	}
}

func newSubPaidCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "paid ID",
		Short: "Mark the current bill as paid and advance the next billing date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := c.app.Subscriptions.MarkAsPaid(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(cmd, sub, func() string {
				return "Paid " + sub.Name + ", next bill " + sub.NextBillingDate.String()
			})
		},
	}
}

func newSubActiveCmd(c *ctl, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := c.app.Subscriptions.SetActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			return c.emit(cmd, sub, func() string {
				return sub.Name + " is now " + activeLabel(sub.Active)
			})
		},
	}
}

func newSubDeleteCmd(c *ctl) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			if err := c.app.Subscriptions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

// describe flattens validation errors into one line per field.
func describe(err error) error {
	ve, ok := core.IsValidation(err)
	if !ok {
		return err
	}
	msg := "invalid input:"
	for _, field := range slices.Sorted(maps.Keys(ve.Fields)) {
		msg += fmt.Sprintf("\n  %s: %s", field, ve.Fields[field])
	}
	return errors.New(msg)
}
