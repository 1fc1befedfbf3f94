package services

import (
	"context"
	"fmt"
	"time"

	"subly/internal/cache"
	"subly/internal/core"
	"subly/internal/metrics"
)

// ActiveSource lists active subscriptions and reports a counter that
// changes after every committed local mutation.
type ActiveSource interface {
	ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error)
	Version() uint64
}

const dashboardCacheName = "dashboard"

// DashboardService computes the dashboard and spending stats. Results are
// cached per store version and day, so any write invalidates them.
type DashboardService struct {
	source  ActiveSource
	today   Clock
	cache   *cache.LRUCache[core.Dashboard]
	metrics *metrics.Metrics
}

func NewDashboardService(source ActiveSource, today Clock, ttl time.Duration, m *metrics.Metrics) *DashboardService {
	return &DashboardService{
		source:  source,
		today:   today,
		cache:   cache.NewLRUCache[core.Dashboard](16, ttl),
		metrics: m,
	}
}

// Cache exposes the snapshot cache so it can be registered for cleanup.
func (s *DashboardService) Cache() *cache.LRUCache[core.Dashboard] {
	return s.cache
}

func (s *DashboardService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	today := s.today()
	key := fmt.Sprintf("%d:%s", s.source.Version(), today.String())

	if d, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookup(dashboardCacheName, true)
		return d, nil
	}
	s.metrics.CacheLookup(dashboardCacheName, false)

	active, err := s.source.ListActiveSubscriptions(ctx)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("list active subscriptions: %w", err)
	}
	d := core.BuildDashboard(active, today)
	s.cache.Set(key, d)
	return d, nil
}

func (s *DashboardService) Stats(ctx context.Context) (core.Stats, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	return d.Stats, nil
}

// FromSnapshot builds a dashboard from an already observed set of active
// subscriptions, bypassing the cache.
func (s *DashboardService) FromSnapshot(active []core.Subscription) core.Dashboard {
	return core.BuildDashboard(active, s.today())
}
