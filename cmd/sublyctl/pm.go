package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"subly/internal/core"
	"subly/internal/services"
)

func newPaymentMethodCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pm",
		Aliases: []string{"payment-method"},
		Short:   "Manage payment methods",
	}

	cmd.AddCommand(
		newPaymentMethodListCmd(c),
		newPaymentMethodAddCmd(c),
		newPaymentMethodEditCmd(c),
		newPaymentMethodDeleteCmd(c),
	)

	return cmd
}

func newPaymentMethodListCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payment methods with how many subscriptions use each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usage, err := c.app.PaymentMethods.List(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(cmd, usage, func() string {
				return renderPaymentMethods(c.styles, usage)
			})
		},
	}
}

type pmFlags struct {
	nickname string
	kind     string
	last4    string
	icon     string
}

func (f *pmFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.nickname, "nickname", "", "display name")
	fs.StringVar(&f.kind, "type", string(core.OtherPayment), "visa, mastercard, paypal, debit-card, ...")
	fs.StringVar(&f.last4, "last4", "", "last four card digits")
	fs.StringVar(&f.icon, "icon", "", "icon name")
}

func (f *pmFlags) apply(fs *pflag.FlagSet, in *services.PaymentMethodInput, all bool) {
	set := func(name string) bool { return all || fs.Changed(name) }
	if set("nickname") {
		in.Nickname = f.nickname
	}
	if set("type") {
		in.Type = core.PaymentType(parseEnum(f.kind))
	}
	if set("last4") {
		in.LastFourDigits = f.last4
	}
	if set("icon") {
		in.Icon = f.icon
	}
}

func newPaymentMethodAddCmd(c *ctl) *cobra.Command {
	var f pmFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a payment method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in services.PaymentMethodInput
			f.apply(cmd.Flags(), &in, true)
			pm, err := c.app.PaymentMethods.Create(cmd.Context(), in)
			if err != nil {
				return describe(err)
			}
			return c.emit(cmd, pm, func() string {
				return "Added " + c.styles.title.Render(pm.Nickname) + " (" + pm.ID + ")"
			})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("nickname")
	return cmd
}

func newPaymentMethodEditCmd(c *ctl) *cobra.Command {
	var f pmFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a payment method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := c.app.PaymentMethods.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in := services.PaymentMethodInput{
				Nickname:       current.Nickname,
				Type:           current.Type,
				LastFourDigits: current.LastFourDigits,
				Icon:           current.Icon,
			}
			f.apply(cmd.Flags(), &in, false)
			pm, err := c.app.PaymentMethods.Update(cmd.Context(), args[0], in)
			if err != nil {
				return describe(err)
			}
			return c.emit(cmd, pm, func() string {
				return "Updated " + pm.Nickname
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newPaymentMethodDeleteCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a payment method no subscription references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.PaymentMethods.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
			return err
		},
	}
}
