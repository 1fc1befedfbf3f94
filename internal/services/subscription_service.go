package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"subly/internal/core"
)

// SubscriptionService orchestrates subscription use cases: local write
// first, then a fire-and-forget mirror of the committed state.
type SubscriptionService struct {
	repo   SubscriptionRepository
	prefs  PreferencesRepository
	mirror Mirror
	today  Clock
	newID  func() string
}

func NewSubscriptionService(repo SubscriptionRepository, prefs PreferencesRepository, mirror Mirror, today Clock) *SubscriptionService {
	if mirror == nil {
		mirror = NoopMirror{}
	}
	return &SubscriptionService{
		repo:   repo,
		prefs:  prefs,
		mirror: mirror,
		today:  today,
		newID:  uuid.NewString,
	}
}

// Create assigns an id, derives the next billing date from the start date
// and stores the subscription. Missing reminder lead time falls back to the
// user's default.
func (s *SubscriptionService) Create(ctx context.Context, in SubscriptionInput) (core.Subscription, error) {
	sub := core.Subscription{
		ID:                 s.newID(),
		Active:             true,
		ReminderDaysBefore: s.defaultReminderDays(ctx),
	}

	ve := core.NewValidationError()
	in.apply(&sub, ve)
	if !sub.StartDate.IsZero() && sub.Frequency.IsValid() {
		sub.NextBillingDate = core.NextBillingDate(sub.StartDate, sub.Frequency)
	}
	if err := mergeValidation(ve, sub.Validate()); err != nil {
		return core.Subscription{}, err
	}

	if err := s.repo.InsertSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}
	slog.InfoContext(ctx, "Subscription created",
		"id", sub.ID,
		"name", sub.Name,
		"amount_cents", sub.Amount.Cents,
		"next_billing_date", sub.NextBillingDate.String())

	s.mirror.SubscriptionSaved(ctx, sub)
	return sub, nil
}

// Update replaces the editable fields of id. The next billing date is only
// re-derived when the start date or frequency changed.
func (s *SubscriptionService) Update(ctx context.Context, id string, in SubscriptionInput) (core.Subscription, error) {
	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}

	updated := current
	ve := core.NewValidationError()
	in.apply(&updated, ve)
	if !updated.StartDate.Equal(current.StartDate.Time) || updated.Frequency != current.Frequency {
		if !updated.StartDate.IsZero() && updated.Frequency.IsValid() {
			updated.NextBillingDate = core.NextBillingDate(updated.StartDate, updated.Frequency)
		}
	}
	if err := mergeValidation(ve, updated.Validate()); err != nil {
		return core.Subscription{}, err
	}

	if err := s.repo.UpdateSubscription(ctx, updated); err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	s.mirror.SubscriptionSaved(ctx, updated)
	return updated, nil
}

// MarkAsPaid advances the next billing date by one period.
func (s *SubscriptionService) MarkAsPaid(ctx context.Context, id string) (core.Subscription, error) {
	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}

	paid := current.MarkPaid()
	if err := s.repo.UpdateSubscription(ctx, paid); err != nil {
		return core.Subscription{}, fmt.Errorf("mark paid: %w", err)
	}
	slog.InfoContext(ctx, "Subscription marked as paid",
		"id", id,
		"previous", current.NextBillingDate.String(),
		"next_billing_date", paid.NextBillingDate.String())

	s.mirror.SubscriptionSaved(ctx, paid)
	return paid, nil
}

// SetActive pauses or resumes a subscription without deleting it.
func (s *SubscriptionService) SetActive(ctx context.Context, id string, active bool) (core.Subscription, error) {
	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}
	if current.Active == active {
		return current, nil
	}

	current.Active = active
	if err := s.repo.UpdateSubscription(ctx, current); err != nil {
		return core.Subscription{}, fmt.Errorf("set active: %w", err)
	}
	s.mirror.SubscriptionSaved(ctx, current)
	return current, nil
}

// Delete removes the subscription locally and from the mirror.
func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteSubscription(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Subscription deleted", "id", id)
	s.mirror.SubscriptionDeleted(ctx, id)
	return nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (core.Subscription, error) {
	return s.repo.GetSubscription(ctx, id)
}

// List returns every subscription, or only active ones.
func (s *SubscriptionService) List(ctx context.Context, activeOnly bool) ([]core.Subscription, error) {
	if activeOnly {
		return s.repo.ListActiveSubscriptions(ctx)
	}
	return s.repo.ListSubscriptions(ctx)
}

// Upcoming lists active subscriptions billed within days of today.
func (s *SubscriptionService) Upcoming(ctx context.Context, days int) ([]core.Subscription, error) {
	if days < 0 {
		days = 0
	}
	today := s.today()
	due, err := s.repo.ListActiveDueBy(ctx, today.AddDays(days))
	if err != nil {
		return nil, err
	}
	return core.UpcomingSubscriptions(due, today, days), nil
}

func (s *SubscriptionService) Observe(ctx context.Context) (<-chan []core.Subscription, error) {
	return s.repo.ObserveSubscriptions(ctx)
}

func (s *SubscriptionService) ObserveOne(ctx context.Context, id string) (<-chan core.Subscription, error) {
	return s.repo.ObserveSubscription(ctx, id)
}

func (s *SubscriptionService) defaultReminderDays(ctx context.Context) int {
	if s.prefs == nil {
		return core.DefaultReminderDaysBefore
	}
	p, err := s.prefs.GetPreferences(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read preferences, using default reminder days", "error", err)
		return core.DefaultReminderDaysBefore
	}
	return p.DefaultReminderDays
}
