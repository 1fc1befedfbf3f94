package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var errAuthDisabled = errors.New("authentication is not configured: set JWT_SECRET")

func newLoginCmd(c *ctl) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Sign in with a bearer token and remember it",
		Long:        "login verifies the token, pulls the remote copy into an empty local store and saves the token to the sublyctl config file for later commands.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoRestore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("--token is required")
			}
			res, err := c.app.SignInFromToken(cmd.Context(), token)
			if err != nil {
				return err
			}
			c.v.Set(keyToken, token)
			if err := c.saveConfig(); err != nil {
				return err
			}
			return c.emit(cmd, res, func() string {
				msg := "Signed in as " + c.styles.title.Render(res.UID)
				switch {
				case res.PullError != "":
					msg += "\n" + c.styles.warning.Render("Initial pull failed: "+res.PullError)
				case res.Pulled:
					msg += "\nPulled remote data into the local store."
				}
				return msg
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token (see `sublyctl token`)")
	return cmd
}

func newLogoutCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Forget the stored token",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoRestore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.v.Set(keyToken, "")
			if err := c.saveConfig(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}

func newWhoamiCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Session == nil {
				return errAuthDisabled
			}
			uid := c.app.Session.UID()
			if uid == "" {
				return errors.New("not signed in: run `sublyctl login`")
			}
			view := struct {
				UID   string `json:"uid"`
				Email string `json:"email,omitempty"`
			}{uid, c.app.Session.Email()}
			return c.emit(cmd, view, func() string {
				if view.Email == "" {
					return view.UID
				}
				return view.UID + " <" + view.Email + ">"
			})
		},
	}
}

func newTokenCmd(c *ctl) *cobra.Command {
	var (
		uid   string
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Mint a bearer token signed with JWT_SECRET",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoRestore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Verifier == nil {
				return errAuthDisabled
			}
			token, err := c.app.Verifier.Issue(uid, email, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "user ID the token is issued to")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}
