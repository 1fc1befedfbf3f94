// Package remote defines the per-identity document mirror that local
// mutations are copied to, and that an empty device pulls from once.
package remote

import (
	"context"

	"subly/internal/core"
)

// Ports for outbound adapters.
type (
	// Backend stores flat documents under users/{uid}/{collection}/{id}.
	// Implementations assign the updatedAt field themselves.
	Backend interface {
		PutDocument(ctx context.Context, uid, collection, id string, doc Document) error
		DeleteDocument(ctx context.Context, uid, collection, id string) error
		ListDocuments(ctx context.Context, uid, collection string) ([]Document, error)
	}

	SubscriptionWriter interface {
		UpsertSubscription(ctx context.Context, uid string, s core.Subscription) error
		DeleteSubscription(ctx context.Context, uid, id string) error
	}

	PaymentMethodWriter interface {
		UpsertPaymentMethod(ctx context.Context, uid string, pm core.PaymentMethod) error
		DeletePaymentMethod(ctx context.Context, uid, id string) error
	}

	// Fetcher reads a whole collection for one identity. Documents that
	// cannot be decoded are skipped, not reported as errors.
	Fetcher interface {
		FetchSubscriptions(ctx context.Context, uid string) ([]core.Subscription, error)
		FetchPaymentMethods(ctx context.Context, uid string) ([]core.PaymentMethod, error)
	}
)
