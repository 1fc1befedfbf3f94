package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextBillingDate(t *testing.T) {
	start := NewDate(2024, 1, 15)
	cases := []struct {
		freq Frequency
		want Date
	}{
		{Weekly, NewDate(2024, 1, 22)},
		{Monthly, NewDate(2024, 2, 15)},
		{Quarterly, NewDate(2024, 4, 15)},
		{SemiAnnual, NewDate(2024, 7, 15)},
		{Annual, NewDate(2025, 1, 15)},
		{Custom, NewDate(2024, 2, 15)},
	}
	for _, tc := range cases {
		t.Run(string(tc.freq), func(t *testing.T) {
			assert.Equal(t, tc.want.String(), NextBillingDate(start, tc.freq).String())
		})
	}
}

func TestNextBillingDate_NeverBeforeCurrent(t *testing.T) {
	day := NewDate(2023, 1, 1)
	for i := 0; i < 800; i++ {
		for _, f := range Frequencies() {
			next := NextBillingDate(day, f)
			if next.Before(day.Time) || next.Equal(day.Time) {
				t.Fatalf("NextBillingDate(%s, %s) = %s", day, f, next)
			}
		}
		day = day.AddDays(1)
	}
}

func TestNormalizedMonthlyAmount(t *testing.T) {
	cases := []struct {
		freq Frequency
		in   float64
		want float64
	}{
		{Weekly, 10, 40},
		{Monthly, 9.99, 9.99},
		{Quarterly, 30, 10},
		{SemiAnnual, 60, 10},
		{Annual, 120, 10},
		{Custom, 7.5, 7.5},
	}
	for _, tc := range cases {
		t.Run(string(tc.freq), func(t *testing.T) {
			assert.InDelta(t, tc.want, NormalizedMonthlyAmount(tc.in, tc.freq), 1e-9)
		})
	}

	for _, f := range Frequencies() {
		assert.GreaterOrEqual(t, NormalizedMonthlyAmount(0, f), 0.0)
		assert.GreaterOrEqual(t, NormalizedMonthlyAmount(12.34, f), 0.0)
	}
}

func TestMarkPaid(t *testing.T) {
	s := validSubscription()
	assert.Equal(t, "2024-02-15", s.NextBillingDate.String())

	paid := s.MarkPaid()
	assert.Equal(t, "2024-03-15", paid.NextBillingDate.String())
	assert.Equal(t, "2024-01-15", paid.StartDate.String())
	assert.Equal(t, "2024-02-15", s.NextBillingDate.String(), "receiver is not modified")
}
