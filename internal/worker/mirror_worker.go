// Package worker applies queued mirror writes to the remote store.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"subly/internal/amqp"
	"subly/internal/metrics"
	"subly/internal/remote"
)

// Store is the remote side the worker writes to.
type Store interface {
	remote.SubscriptionWriter
	remote.PaymentMethodWriter
}

// MirrorWorker handles mirror messages consumed from AMQP. Messages that
// cannot be decoded are reported as amqp.ErrMalformed so the consumer
// drops them; remote failures are returned as-is so they are requeued.
type MirrorWorker struct {
	store   Store
	metrics *metrics.Metrics
}

func NewMirrorWorker(store Store, m *metrics.Metrics) *MirrorWorker {
	return &MirrorWorker{store: store, metrics: m}
}

// HandleMirrorMessage applies one message.
func (w *MirrorWorker) HandleMirrorMessage(ctx context.Context, msg *amqp.MirrorMessage) error {
	slog.DebugContext(ctx, "Processing mirror message",
		"op", msg.Op,
		"collection", msg.Collection,
		"id", msg.ID,
		"uid", msg.UID)

	err := w.apply(ctx, msg)
	w.metrics.MirrorWrite(msg.Collection, string(msg.Op), err)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to apply mirror message",
			"op", msg.Op,
			"collection", msg.Collection,
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return err
	}

	slog.InfoContext(ctx, "Mirror message applied",
		"op", msg.Op,
		"collection", msg.Collection,
		"id", msg.ID)
	return nil
}

func (w *MirrorWorker) apply(ctx context.Context, msg *amqp.MirrorMessage) error {
	switch msg.Collection {
	case remote.CollectionSubscriptions:
		if msg.Op == amqp.OpDelete {
			return w.store.DeleteSubscription(ctx, msg.UID, msg.ID)
		}
		sub, err := remote.SubscriptionFromDocument(remote.Document(msg.Document))
		if err != nil {
			return fmt.Errorf("%w: %v", amqp.ErrMalformed, err)
		}
		if sub.ID != msg.ID {
			return fmt.Errorf("%w: document id %q does not match %q", amqp.ErrMalformed, sub.ID, msg.ID)
		}
		return w.store.UpsertSubscription(ctx, msg.UID, sub)

	case remote.CollectionPaymentMethods:
		if msg.Op == amqp.OpDelete {
			return w.store.DeletePaymentMethod(ctx, msg.UID, msg.ID)
		}
		pm, err := remote.PaymentMethodFromDocument(remote.Document(msg.Document))
		if err != nil {
			return fmt.Errorf("%w: %v", amqp.ErrMalformed, err)
		}
		if pm.ID != msg.ID {
			return fmt.Errorf("%w: document id %q does not match %q", amqp.ErrMalformed, pm.ID, msg.ID)
		}
		return w.store.UpsertPaymentMethod(ctx, msg.UID, pm)

	default:
		return fmt.Errorf("%w: unknown collection %q", amqp.ErrMalformed, msg.Collection)
	}
}
