package cli

import (
	"context"
	"errors"
	"fmt"

	"subly/internal/adapters"
	"subly/internal/auth"
	"subly/internal/backend"
	"subly/internal/config"
	"subly/internal/log"
	"subly/internal/metrics"
	"subly/internal/notify"
	"subly/internal/scheduler"
	"subly/internal/services"
	"subly/internal/storage"
)

// App is the local store, remote mirror and use cases wired together the
// same way for every binary.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics

	Repo    *storage.SQLiteRepository
	Backend *backend.Result

	// Verifier and Session are nil when no JWT secret is configured.
	Verifier *auth.Verifier
	Session  *auth.Session

	Subscriptions  *services.SubscriptionService
	PaymentMethods *services.PaymentMethodService
	Dashboard      *services.DashboardService
	Settings       *services.SettingsService
	Reminders      *services.ReminderProcessor
}

// NewApp opens the local store and builds the remote side from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Metrics) (*App, error) {
	repo, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Metrics: m, Repo: repo}

	bc, err := BackendConfig(cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}
	identity := adapters.IdentityFunc(func() string {
		if app.Session == nil {
			return ""
		}
		return app.Session.UID()
	})
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog(), m).Create(ctx, bc, identity)
	if err != nil {
		repo.Close()
		return nil, err
	}
	app.Backend = res

	if cfg.AuthEnabled() {
		var puller auth.InitialPuller
		if res.Remote != nil {
			puller = services.NewSyncService(repo, res.Remote, m)
		}
		app.Verifier = auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
		app.Session = auth.NewSession(app.Verifier, puller)
	}

	today := cfg.Today
	app.Subscriptions = services.NewSubscriptionService(repo, repo, res.Mirror, today)
	app.PaymentMethods = services.NewPaymentMethodService(repo, res.Mirror)
	app.Dashboard = services.NewDashboardService(repo, today, cfg.CacheTTL, m)
	app.Settings = services.NewSettingsService(repo)
	app.Reminders = services.NewReminderProcessor(repo, app.Notifier(), today, m)

	return app, nil
}

// Notifier logs every reminder and, when configured, also queues it for
// an external delivery service.
func (a *App) Notifier() notify.Notifier {
	logNotifier := notify.NewLogNotifier(a.Logger.WithComponent(log.ComponentNotify).Slog())
	if !a.Config.NotifyViaQueue || a.Backend == nil || a.Backend.Queue == nil {
		return logNotifier
	}
	return notify.Fanout{
		logNotifier,
		notify.NewQueueNotifier(a.Backend.Queue, a.Config.AMQPNotificationQueue),
	}
}

// NewScheduler builds an unstarted reminder scheduler in the configured
// time zone.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", a.Config.TimeZone, err)
	}
	return scheduler.New(a.Reminders, a.Repo, scheduler.Config{
		Location:    loc,
		MaxAttempts: a.Config.ReminderRetries,
	}, a.Logger.WithComponent(log.ComponentScheduler).Slog()), nil
}

// SignInFromToken restores the identity from a stored bearer token, used by
// the CLI between invocations.
func (a *App) SignInFromToken(ctx context.Context, token string) (auth.SignInResult, error) {
	if a.Session == nil {
		return auth.SignInResult{}, errors.New("authentication is not configured: set JWT_SECRET")
	}
	return a.Session.SignIn(ctx, token)
}

// Close drains pending mirror writes, then closes the queue and the store.
func (a *App) Close() error {
	var errs []error
	if err := a.Backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	if err := a.Repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close local store: %w", err))
	}
	return errors.Join(errs...)
}
