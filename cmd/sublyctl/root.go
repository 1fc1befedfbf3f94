package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"subly/internal/cli"
	"subly/internal/config"
	"subly/internal/log"
)

// Keys persisted in the sublyctl config file. Each may also be set through
// the environment with the SUBLY_ prefix, e.g. SUBLY_TOKEN.
const (
	keyToken = "token"
	keyDB    = "db"
)

// annotationNoRestore marks commands that must not sign in with the stored
// token before running.
const annotationNoRestore = "sublyctl/no-restore"

type ctl struct {
	v          *viper.Viper
	configPath string
	asJSON     bool
	verbose    bool

	app    *cli.App
	styles styles
}

func newCtl() *ctl {
	v := viper.New()
	v.SetEnvPrefix("SUBLY")
	v.AutomaticEnv()
	return &ctl{v: v, styles: newStyles()}
}

func execute() error {
	c := newCtl()
	err := newRootCmd(c).Execute()
	return errors.Join(err, c.close())
}

func newRootCmd(c *ctl) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sublyctl",
		Short:         "Track recurring subscriptions from the terminal",
		Long:          "sublyctl manages subscriptions, payment methods and reminder settings in the local subly store, mirroring changes to the configured remote.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", defaultConfigPath(), "sublyctl config file")
	flags.String("db", "", "path to the SQLite store (overrides SQLITE_DB_PATH)")
	flags.BoolVar(&c.asJSON, "json", false, "print JSON instead of tables")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level to stderr")
	_ = c.v.BindPFlag(keyDB, flags.Lookup("db"))

	rootCmd.AddCommand(
		newSubCmd(c),
		newPaymentMethodCmd(c),
		newStatsCmd(c),
		newRemindCmd(c),
		newSettingsCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newTokenCmd(c),
	)

	return rootCmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sublyctl.yaml"
	}
	return filepath.Join(dir, "subly", "sublyctl.yaml")
}

// open reads the config file, builds the application and restores the
// stored identity.
func (c *ctl) open(cmd *cobra.Command) error {
	if c.app != nil {
		return nil
	}
	if err := c.readConfig(); err != nil {
		return err
	}

	cli.LoadEnvFile()
	cfg := config.Load()
	if db := c.v.GetString(keyDB); db != "" {
		cfg.SQLiteDBPath = db
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})

	app, err := cli.NewApp(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	c.app = app

	if _, skip := cmd.Annotations[annotationNoRestore]; skip {
		return nil
	}
	if token := c.v.GetString(keyToken); token != "" && app.Session != nil {
		if _, err := app.SignInFromToken(cmd.Context(), token); err != nil {
			logger.Warn("Stored token rejected, continuing signed out", log.FieldError, err)
		}
	}
	return nil
}

func (c *ctl) readConfig() error {
	c.v.SetConfigFile(c.configPath)
	c.v.SetConfigType("yaml")
	err := c.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read %s: %w", c.configPath, err)
}

func (c *ctl) saveConfig() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := c.v.WriteConfigAs(c.configPath); err != nil {
		return fmt.Errorf("write %s: %w", c.configPath, err)
	}
	return os.Chmod(c.configPath, 0o600)
}

func (c *ctl) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// emit prints v as indented JSON when --json is set, otherwise the
// rendered text.
func (c *ctl) emit(cmd *cobra.Command, v any, render func() string) error {
	if c.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), render())
	return err
}
