package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"subly/internal/core"
	"subly/internal/metrics"
	"subly/internal/remote"
)

// SyncService seeds an empty local store from the remote mirror.
type SyncService struct {
	local   SnapshotRepository
	remote  remote.Fetcher
	metrics *metrics.Metrics
	group   singleflight.Group
}

func NewSyncService(local SnapshotRepository, fetcher remote.Fetcher, m *metrics.Metrics) *SyncService {
	return &SyncService{local: local, remote: fetcher, metrics: m}
}

// InitialPullIfEmpty imports every remote payment method and subscription
// for uid when the local store holds neither. It never merges: once any
// local row exists the call is a no-op and reports false. Concurrent calls
// for the same uid share one run.
func (s *SyncService) InitialPullIfEmpty(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, fmt.Errorf("initial pull: no signed-in identity")
	}

	v, err, shared := s.group.Do(uid, func() (interface{}, error) {
		return s.pull(ctx, uid)
	})
	if shared {
		slog.DebugContext(ctx, "Initial pull shared with concurrent sign-in", "uid", uid)
	}
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *SyncService) pull(ctx context.Context, uid string) (pulled bool, err error) {
	defer func() { s.metrics.InitialPull(!pulled, err) }()

	subs, err := s.local.CountSubscriptions(ctx)
	if err != nil {
		return false, fmt.Errorf("count subscriptions: %w", err)
	}
	pms, err := s.local.CountPaymentMethods(ctx)
	if err != nil {
		return false, fmt.Errorf("count payment methods: %w", err)
	}
	if subs > 0 || pms > 0 {
		slog.DebugContext(ctx, "Local data present, skipping initial pull",
			"subscriptions", subs,
			"payment_methods", pms)
		return false, nil
	}

	remotePMs, err := s.remote.FetchPaymentMethods(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("fetch payment methods: %w", err)
	}
	remoteSubs, err := s.remote.FetchSubscriptions(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("fetch subscriptions: %w", err)
	}

	dropDanglingPaymentMethods(ctx, remotePMs, remoteSubs)

	if err := s.local.ImportSnapshot(ctx, remotePMs, remoteSubs); err != nil {
		return false, fmt.Errorf("import snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Initial pull completed",
		"uid", uid,
		"payment_methods", len(remotePMs),
		"subscriptions", len(remoteSubs))
	return true, nil
}

// dropDanglingPaymentMethods clears references to payment methods missing
// from the snapshot, for example ones skipped as malformed, so the import
// does not fail on the foreign key.
func dropDanglingPaymentMethods(ctx context.Context, pms []core.PaymentMethod, subs []core.Subscription) {
	known := make(map[string]struct{}, len(pms))
	for _, pm := range pms {
		known[pm.ID] = struct{}{}
	}
	for i := range subs {
		if !subs[i].HasPaymentMethod() {
			continue
		}
		if _, ok := known[subs[i].PaymentMethodID]; !ok {
			slog.WarnContext(ctx, "Dropping reference to unknown payment method",
				"subscription_id", subs[i].ID,
				"payment_method_id", subs[i].PaymentMethodID)
			subs[i].PaymentMethodID = ""
		}
	}
}
