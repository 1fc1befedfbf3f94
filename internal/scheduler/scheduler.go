// Package scheduler fires the morning and evening reminder runs at the
// times stored in the notification preferences.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"subly/internal/core"
	"subly/internal/services"
)

// Runner performs one reminder pass for a slot.
type Runner interface {
	Run(ctx context.Context, slot string) (services.RunResult, error)
}

// PreferencesSource supplies the reminder times and their updates.
type PreferencesSource interface {
	GetPreferences(ctx context.Context) (core.NotificationPreferences, error)
	ObservePreferences(ctx context.Context) (<-chan core.NotificationPreferences, error)
}

type Config struct {
	// Location is the time zone the reminder times are read in.
	Location *time.Location

	// MaxAttempts bounds tries per run, the first one included (default: 3).
	MaxAttempts int

	// BaseDelay is the first retry delay, doubled per attempt (default: 1s).
	BaseDelay time.Duration

	// MaxDelay caps the retry delay (default: 30s).
	MaxDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Location:    time.Local,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Scheduler owns two cron entries, one per slot. Preference changes
// replace the entries; disabling notifications removes them.
type Scheduler struct {
	runner Runner
	prefs  PreferencesSource
	config Config
	logger *slog.Logger
	cron   *cron.Cron

	entryMu sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string

	// Lifecycle management
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	doneCh  chan struct{}

	sleep func(ctx context.Context, d time.Duration) error
}

func New(runner Runner, prefs PreferencesSource, config Config, logger *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if config.Location == nil {
		config.Location = def.Location
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(config.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		runner:  runner,
		prefs:   prefs,
		config:  config,
		logger:  logger,
		cron:    c,
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
		sleep:   sleepContext,
	}
}

// Start schedules the entries from the current preferences and follows
// later changes until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	runCtx := s.ctx
	s.mu.Unlock()

	updates, err := s.prefs.ObservePreferences(runCtx)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("observe preferences: %w", err)
	}

	// The first snapshot is the current state.
	select {
	case p, ok := <-updates:
		if ok {
			s.Apply(p)
		}
	case <-runCtx.Done():
	}

	s.cron.Start()
	go s.follow(runCtx, updates)

	s.logger.InfoContext(ctx, "Scheduler started", "location", s.config.Location.String())
	return nil
}

func (s *Scheduler) abortStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	close(s.doneCh)
	s.running = false
}

func (s *Scheduler) follow(ctx context.Context, updates <-chan core.NotificationPreferences) {
	defer close(s.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			s.Apply(p)
		}
	}
}

// Stop removes the schedule and waits for in-flight runs to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.doneCh
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Apply brings the cron entries in line with p. Unchanged slots keep
// their entry.
func (s *Scheduler) Apply(p core.NotificationPreferences) {
	s.entryMu.Lock()
	defer s.entryMu.Unlock()

	if !p.Enabled {
		for slot := range s.entries {
			s.removeLocked(slot)
		}
		s.logger.Info("Reminders cancelled, notifications disabled")
		return
	}

	s.setLocked(services.SlotMorning, p.MorningTime.CronSpec())
	s.setLocked(services.SlotEvening, p.EveningTime.CronSpec())
}

func (s *Scheduler) setLocked(slot, spec string) {
	if cur, ok := s.specs[slot]; ok && cur == spec {
		return
	}
	s.removeLocked(slot)

	id, err := s.cron.AddFunc(spec, func() { s.runScheduled(slot) })
	if err != nil {
		s.logger.Error("Failed to schedule reminder", "slot", slot, "spec", spec, "error", err)
		return
	}
	s.entries[slot] = id
	s.specs[slot] = spec
	s.logger.Info("Reminder scheduled", "slot", slot, "spec", spec)
}

func (s *Scheduler) removeLocked(slot string) {
	if id, ok := s.entries[slot]; ok {
		s.cron.Remove(id)
		delete(s.entries, slot)
		delete(s.specs, slot)
	}
}

// Next reports when slot fires next; false when it is not scheduled.
func (s *Scheduler) Next(slot string) (time.Time, bool) {
	s.entryMu.Lock()
	id, ok := s.entries[slot]
	s.entryMu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		next = s.cron.Entry(id).Schedule.Next(time.Now().In(s.config.Location))
	}
	return next, true
}

// Spec returns the cron expression currently scheduled for slot.
func (s *Scheduler) Spec(slot string) (string, bool) {
	s.entryMu.Lock()
	defer s.entryMu.Unlock()
	spec, ok := s.specs[slot]
	return spec, ok
}

func (s *Scheduler) runScheduled(slot string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.RunWithRetry(ctx, slot); err != nil {
		s.logger.ErrorContext(ctx, "Reminder run failed permanently", "slot", slot, "error", err)
	}
}

// RunWithRetry runs slot, retrying failures with exponential backoff up
// to the configured number of attempts.
func (s *Scheduler) RunWithRetry(ctx context.Context, slot string) (services.RunResult, error) {
	var lastErr error
	for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt - 1)
			s.logger.WarnContext(ctx, "Retrying reminder run",
				"slot", slot,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr)
			if err := s.sleep(ctx, delay); err != nil {
				return services.RunResult{}, fmt.Errorf("reminder run %s: %w", slot, err)
			}
		}

		res, err := s.runner.Run(ctx, slot)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return services.RunResult{}, fmt.Errorf("reminder run %s failed after %d attempts: %w", slot, s.config.MaxAttempts, lastErr)
}

func (s *Scheduler) backoff(attempt int) time.Duration {
	d := s.config.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= s.config.MaxDelay {
			return s.config.MaxDelay
		}
	}
	if d > s.config.MaxDelay {
		return s.config.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
