// Package cli provides common initialization for the subly binaries:
// cmd/subly, cmd/subly-worker, cmd/reminder-worker and cmd/sublyctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"subly/internal/backend"
	"subly/internal/config"
	"subly/internal/log"
	"subly/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logConfig := log.DefaultConfig()
	logConfig.Component = component
	if cfg != nil {
		logConfig.Level = log.ParseLevel(cfg.LogLevel)
		logConfig.Format = cfg.LogFormat
	}
	logger := log.New(logConfig)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is the server-side startup sequence: .env, config, logger.
// It exits the process when the configuration is invalid.
func MustLoad(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		logger := SetupLogger(nil, component)
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg, component)
}

// InitSQLite opens the local store, applying pending migrations.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", dbPath, err)
	}
	logger.Info("Local store ready", "path", dbPath)
	return repo, nil
}

// BackendConfig maps the application config onto the backend factory's.
func BackendConfig(cfg *config.Config) (backend.Config, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return backend.Config{}, fmt.Errorf("backend configuration: %w", err)
	}
	return bc, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
