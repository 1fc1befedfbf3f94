package core

import "sort"

const (
	DashboardWindowDays = 30
	DashboardUpcoming   = 5
)

// Stats aggregates spending over a set of active subscriptions.
type Stats struct {
	TotalMonthly float64              `json:"totalMonthly"`
	TotalYearly  float64              `json:"totalYearly"`
	ActiveCount  int                  `json:"activeCount"`
	ByCategory   map[Category]float64 `json:"byCategory"`
}

// Dashboard is the home view: nearest upcoming bills plus spending stats.
type Dashboard struct {
	Upcoming []Subscription `json:"upcoming"`
	Stats    Stats          `json:"stats"`
}

// AggregateStats sums normalized monthly amounts across active. Amounts in
// different currencies are added as-is. ByCategory holds only categories
// present in active and is never nil.
func AggregateStats(active []Subscription) Stats {
	st := Stats{ByCategory: make(map[Category]float64)}
	for _, s := range active {
		m := s.MonthlyAmount()
		st.TotalMonthly += m
		st.ByCategory[s.Category] += m
	}
	st.TotalYearly = st.TotalMonthly * 12
	st.ActiveCount = len(active)
	return st
}

// UpcomingSubscriptions returns active subscriptions billed on or before
// today+days, nearest first.
func UpcomingSubscriptions(subs []Subscription, today Date, days int) []Subscription {
	limit := today.AddDays(days)
	out := make([]Subscription, 0)
	for _, s := range subs {
		if !s.Active || s.NextBillingDate.After(limit.Time) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextBillingDate.Before(out[j].NextBillingDate.Time)
	})
	return out
}

// BuildDashboard combines the nearest upcoming subscriptions with stats
// over every active one.
func BuildDashboard(active []Subscription, today Date) Dashboard {
	upcoming := UpcomingSubscriptions(active, today, DashboardWindowDays)
	if len(upcoming) > DashboardUpcoming {
		upcoming = upcoming[:DashboardUpcoming]
	}
	return Dashboard{
		Upcoming: upcoming,
		Stats:    AggregateStats(active),
	}
}
