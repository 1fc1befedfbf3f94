package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subly/internal/amqp"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "Notification",
		"kind", n.Kind,
		"title", n.Title,
		"body", n.Body,
		"subscription_id", n.SubscriptionID,
		"deep_link", n.DeepLink)
	return nil
}

// Publisher is the queue side QueueNotifier needs.
type Publisher interface {
	PublishNotification(ctx context.Context, routingKey string, msg *amqp.NotificationMessage) error
}

// QueueNotifier publishes notifications for an external delivery service.
type QueueNotifier struct {
	publisher  Publisher
	routingKey string
}

func NewQueueNotifier(publisher Publisher, routingKey string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, routingKey: routingKey}
}

func (q *QueueNotifier) Notify(ctx context.Context, n Notification) error {
	return q.publisher.PublishNotification(ctx, q.routingKey, &amqp.NotificationMessage{
		Kind:           string(n.Kind),
		Title:          n.Title,
		Body:           n.Body,
		SubscriptionID: n.SubscriptionID,
		DeepLink:       n.DeepLink,
		Count:          n.Count,
		Total:          n.Total,
		Timestamp:      time.Now(),
	})
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
