package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subly/internal/cache"
	"subly/internal/cli"
	"subly/internal/config"
	apphttp "subly/internal/http"
	"subly/internal/log"
	"subly/internal/metrics"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	m := metrics.New()
	app, err := cli.NewApp(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Shutdown cleanup failed", log.FieldError, err)
		}
	}()

	sched, err := app.NewScheduler()
	if err != nil {
		return err
	}

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	caches.Register(app.Dashboard.Cache())
	caches.StartCleanup(cfg.CacheTTL)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Subscriptions:  app.Subscriptions,
		PaymentMethods: app.PaymentMethods,
		Dashboard:      app.Dashboard,
		Settings:       app.Settings,
		Active:         app.Repo,
		Store:          app.Repo,
		Session:        app.Session,
		Reminders:      app.Reminders,
		Schedule:       sched,
		Metrics:        m,
		Logger:         logger,
		Hardening: apphttp.Hardening{
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			SuspiciousAgents:  cfg.SuspiciousAgents,
			TrustedProxies:    cfg.TrustedProxies,
		},
	})
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting subly server",
			"port", cfg.Port,
			"remote", cfg.RemoteBackend,
			"transport", cfg.MirrorTransport,
			"auth", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		return sched.Stop(stopCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
