package services

import (
	"context"

	"subly/internal/core"
)

// SubscriptionRepository is the local store as seen by subscription use cases.
type SubscriptionRepository interface {
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error)
	ListActiveDueBy(ctx context.Context, until core.Date) ([]core.Subscription, error)
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
	InsertSubscription(ctx context.Context, s core.Subscription) error
	UpdateSubscription(ctx context.Context, s core.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	ObserveSubscriptions(ctx context.Context) (<-chan []core.Subscription, error)
	ObserveSubscription(ctx context.Context, id string) (<-chan core.Subscription, error)
}

type PaymentMethodRepository interface {
	ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
	ListPaymentMethodUsage(ctx context.Context) ([]core.PaymentMethodUsage, error)
	GetPaymentMethod(ctx context.Context, id string) (core.PaymentMethod, error)
	InsertPaymentMethod(ctx context.Context, pm core.PaymentMethod) error
	UpdatePaymentMethod(ctx context.Context, pm core.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, id string) error
	CountSubscriptionsForPaymentMethod(ctx context.Context, paymentMethodID string) (int, error)
	ObservePaymentMethods(ctx context.Context) (<-chan []core.PaymentMethodUsage, error)
}

type SnapshotRepository interface {
	CountSubscriptions(ctx context.Context) (int, error)
	CountPaymentMethods(ctx context.Context) (int, error)
	ImportSnapshot(ctx context.Context, pms []core.PaymentMethod, subs []core.Subscription) error
}

type PreferencesRepository interface {
	GetPreferences(ctx context.Context) (core.NotificationPreferences, error)
	SavePreferences(ctx context.Context, p core.NotificationPreferences) error
	ObservePreferences(ctx context.Context) (<-chan core.NotificationPreferences, error)
}

// Mirror copies committed local changes to the remote store. Calls return
// immediately and never report failure.
type Mirror interface {
	SubscriptionSaved(ctx context.Context, s core.Subscription)
	SubscriptionDeleted(ctx context.Context, id string)
	PaymentMethodSaved(ctx context.Context, pm core.PaymentMethod)
	PaymentMethodDeleted(ctx context.Context, id string)
}

// NoopMirror discards every change.
type NoopMirror struct{}

func (NoopMirror) SubscriptionSaved(context.Context, core.Subscription)   {}
func (NoopMirror) SubscriptionDeleted(context.Context, string)            {}
func (NoopMirror) PaymentMethodSaved(context.Context, core.PaymentMethod) {}
func (NoopMirror) PaymentMethodDeleted(context.Context, string)           {}

// Clock returns the current calendar date.
type Clock func() core.Date
