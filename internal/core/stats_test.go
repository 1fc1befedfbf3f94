package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sub(name string, cat Category, cents int64, f Frequency, next Date) Subscription {
	return Subscription{
		ID:                 name,
		Name:               name,
		Category:           cat,
		Amount:             Money{Cents: cents, Currency: "USD"},
		Frequency:          f,
		StartDate:          next,
		NextBillingDate:    next,
		Active:             true,
		ReminderDaysBefore: DefaultReminderDaysBefore,
	}
}

func TestAggregateStats_Empty(t *testing.T) {
	st := AggregateStats(nil)
	assert.Zero(t, st.TotalMonthly)
	assert.Zero(t, st.TotalYearly)
	assert.Zero(t, st.ActiveCount)
	require.NotNil(t, st.ByCategory)
	assert.Empty(t, st.ByCategory)
}

func TestAggregateStats(t *testing.T) {
	d := NewDate(2024, 5, 1)
	active := []Subscription{
		sub("netflix", Streaming, 1500, Monthly, d),
		sub("hulu", Streaming, 1200, Annual, d),
		sub("gym", Membership, 1000, Weekly, d),
		sub("ide", Software, 3000, Quarterly, d),
	}

	st := AggregateStats(active)

	var sum float64
	for _, s := range active {
		sum += NormalizedMonthlyAmount(s.Amount.Major(), s.Frequency)
	}
	assert.InDelta(t, sum, st.TotalMonthly, 1e-9)
	assert.InDelta(t, 15+1+40+10, st.TotalMonthly, 1e-9)
	assert.Equal(t, st.TotalMonthly*12, st.TotalYearly)
	assert.Equal(t, 4, st.ActiveCount)

	assert.Len(t, st.ByCategory, 3)
	assert.InDelta(t, 16, st.ByCategory[Streaming], 1e-9)
	assert.InDelta(t, 40, st.ByCategory[Membership], 1e-9)
	assert.InDelta(t, 10, st.ByCategory[Software], 1e-9)
	_, hasUtility := st.ByCategory[Utility]
	assert.False(t, hasUtility)
}

func TestUpcomingSubscriptions(t *testing.T) {
	today := NewDate(2024, 5, 1)
	inactive := sub("paused", Club, 500, Monthly, today.AddDays(1))
	inactive.Active = false

	subs := []Subscription{
		sub("later", Service, 100, Monthly, today.AddDays(10)),
		sub("soon", Service, 100, Monthly, today.AddDays(2)),
		sub("far", Service, 100, Monthly, today.AddDays(31)),
		inactive,
	}

	got := UpcomingSubscriptions(subs, today, 30)
	require.Len(t, got, 2)
	assert.Equal(t, "soon", got[0].Name)
	assert.Equal(t, "later", got[1].Name)
}

func TestBuildDashboard_TopFive(t *testing.T) {
	today := NewDate(2024, 5, 1)
	var subs []Subscription
	for i := 7; i >= 1; i-- {
		subs = append(subs, sub(string(rune('a'+i)), Utility, 100, Monthly, today.AddDays(i)))
	}

	dash := BuildDashboard(subs, today)
	require.Len(t, dash.Upcoming, DashboardUpcoming)
	assert.Equal(t, today.AddDays(1).String(), dash.Upcoming[0].NextBillingDate.String())
	assert.Equal(t, 7, dash.Stats.ActiveCount)
}
