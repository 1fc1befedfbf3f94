package remote

import (
	"context"
	"fmt"
	"log/slog"

	"subly/internal/core"
)

// Store encodes domain entities into documents on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

var (
	_ SubscriptionWriter  = (*Store)(nil)
	_ PaymentMethodWriter = (*Store)(nil)
	_ Fetcher             = (*Store)(nil)
)

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger.With("component", "remote")}
}

// Backend exposes the underlying document backend.
func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) UpsertSubscription(ctx context.Context, uid string, sub core.Subscription) error {
	return s.backend.PutDocument(ctx, uid, CollectionSubscriptions, sub.ID, SubscriptionDocument(sub))
}

func (s *Store) DeleteSubscription(ctx context.Context, uid, id string) error {
	return s.backend.DeleteDocument(ctx, uid, CollectionSubscriptions, id)
}

func (s *Store) UpsertPaymentMethod(ctx context.Context, uid string, pm core.PaymentMethod) error {
	return s.backend.PutDocument(ctx, uid, CollectionPaymentMethods, pm.ID, PaymentMethodDocument(pm))
}

func (s *Store) DeletePaymentMethod(ctx context.Context, uid, id string) error {
	return s.backend.DeleteDocument(ctx, uid, CollectionPaymentMethods, id)
}

func (s *Store) FetchSubscriptions(ctx context.Context, uid string) ([]core.Subscription, error) {
	docs, err := s.backend.ListDocuments(ctx, uid, CollectionSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", CollectionPath(uid, CollectionSubscriptions), err)
	}
	out := make([]core.Subscription, 0, len(docs))
	for _, doc := range docs {
		sub, err := SubscriptionFromDocument(doc)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed subscription document", "id", doc["id"], "error", err)
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *Store) FetchPaymentMethods(ctx context.Context, uid string) ([]core.PaymentMethod, error) {
	docs, err := s.backend.ListDocuments(ctx, uid, CollectionPaymentMethods)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", CollectionPath(uid, CollectionPaymentMethods), err)
	}
	out := make([]core.PaymentMethod, 0, len(docs))
	for _, doc := range docs {
		pm, err := PaymentMethodFromDocument(doc)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed payment method document", "id", doc["id"], "error", err)
			continue
		}
		out = append(out, pm)
	}
	return out, nil
}
