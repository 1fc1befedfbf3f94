package adapters

import (
	"context"
	"log/slog"

	"subly/internal/amqp"
	"subly/internal/core"
	"subly/internal/metrics"
	"subly/internal/remote"
)

// MirrorPublisher is the queue side QueueWriter needs.
type MirrorPublisher interface {
	PublishMirror(ctx context.Context, msg *amqp.MirrorMessage) error
}

// QueueWriter turns remote writes into queued mirror messages that the
// worker applies later. A nil error means the broker accepted the message.
type QueueWriter struct {
	publisher MirrorPublisher
}

var _ Writer = (*QueueWriter)(nil)

func NewQueueWriter(publisher MirrorPublisher) *QueueWriter {
	return &QueueWriter{publisher: publisher}
}

func (q *QueueWriter) UpsertSubscription(ctx context.Context, uid string, s core.Subscription) error {
	doc := remote.SubscriptionDocument(s)
	return q.publisher.PublishMirror(ctx, amqp.NewMirrorUpsert(uid, remote.CollectionSubscriptions, s.ID, doc))
}

func (q *QueueWriter) DeleteSubscription(ctx context.Context, uid, id string) error {
	return q.publisher.PublishMirror(ctx, amqp.NewMirrorDelete(uid, remote.CollectionSubscriptions, id))
}

func (q *QueueWriter) UpsertPaymentMethod(ctx context.Context, uid string, pm core.PaymentMethod) error {
	doc := remote.PaymentMethodDocument(pm)
	return q.publisher.PublishMirror(ctx, amqp.NewMirrorUpsert(uid, remote.CollectionPaymentMethods, pm.ID, doc))
}

func (q *QueueWriter) DeletePaymentMethod(ctx context.Context, uid, id string) error {
	return q.publisher.PublishMirror(ctx, amqp.NewMirrorDelete(uid, remote.CollectionPaymentMethods, id))
}

// NewQueueMirror mirrors through the message queue instead of writing to
// the remote store directly.
func NewQueueMirror(identity Identity, publisher MirrorPublisher, m *metrics.Metrics, logger *slog.Logger) *AsyncMirror {
	return NewAsyncMirror(identity, NewQueueWriter(publisher), m, logger)
}
