package services

import (
	"context"
	"fmt"
	"log/slog"

	"subly/internal/core"
	"subly/internal/metrics"
	"subly/internal/notify"
)

// Reminder slots fired by the scheduler.
const (
	SlotMorning = "morning"
	SlotEvening = "evening"
	SlotManual  = "manual"
)

// ReminderSource is the read side a reminder run needs.
type ReminderSource interface {
	ListActiveDueBy(ctx context.Context, until core.Date) ([]core.Subscription, error)
	GetPreferences(ctx context.Context) (core.NotificationPreferences, error)
}

// RunResult summarizes one reminder run.
type RunResult struct {
	Slot      string `json:"slot"`
	Disabled  bool   `json:"disabled"`
	Due       int    `json:"due"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// ReminderProcessor evaluates which subscriptions need a reminder today and
// hands the resulting notifications to a Notifier.
type ReminderProcessor struct {
	source   ReminderSource
	notifier notify.Notifier
	today    Clock
	metrics  *metrics.Metrics
}

func NewReminderProcessor(source ReminderSource, notifier notify.Notifier, today Clock, m *metrics.Metrics) *ReminderProcessor {
	return &ReminderProcessor{source: source, notifier: notifier, today: today, metrics: m}
}

// Run performs one reminder pass. Only local read failures are returned;
// the caller retries those. Delivery failures are logged and counted.
func (p *ReminderProcessor) Run(ctx context.Context, slot string) (res RunResult, err error) {
	res.Slot = slot
	defer func() { p.metrics.ReminderRun(slot, err) }()

	prefs, err := p.source.GetPreferences(ctx)
	if err != nil {
		return res, fmt.Errorf("read preferences: %w", err)
	}
	if !prefs.Enabled {
		res.Disabled = true
		slog.DebugContext(ctx, "Notifications disabled, skipping reminder run", "slot", slot)
		return res, nil
	}

	today := p.today()
	candidates, err := p.source.ListActiveDueBy(ctx, today.AddDays(core.MaxReminderWindow))
	if err != nil {
		return res, fmt.Errorf("list due subscriptions: %w", err)
	}

	reminders := core.EvaluateReminders(today, candidates)
	res.Due = len(reminders)

	for _, n := range notify.Build(reminders) {
		deliverErr := p.notifier.Notify(ctx, n)
		p.metrics.Notification(string(n.Kind), deliverErr)
		if deliverErr != nil {
			res.Failed++
			slog.WarnContext(ctx, "Failed to deliver notification",
				"slot", slot,
				"kind", n.Kind,
				"subscription_id", n.SubscriptionID,
				"error", deliverErr)
			continue
		}
		res.Delivered++
	}

	slog.InfoContext(ctx, "Reminder run completed",
		"slot", slot,
		"date", today.String(),
		"due", res.Due,
		"delivered", res.Delivered,
		"failed", res.Failed)
	return res, nil
}
