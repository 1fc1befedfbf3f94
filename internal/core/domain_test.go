package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubscription() Subscription {
	start := NewDate(2024, 1, 15)
	return Subscription{
		ID:                 "sub-1",
		Name:               "Netflix",
		Category:           Streaming,
		Amount:             Money{Cents: 999, Currency: "USD"},
		Frequency:          Monthly,
		StartDate:          start,
		NextBillingDate:    NextBillingDate(start, Monthly),
		Active:             true,
		ReminderDaysBefore: DefaultReminderDaysBefore,
	}
}

func TestSubscriptionValidate(t *testing.T) {
	require.NoError(t, validSubscription().Validate())

	cases := []struct {
		name    string
		mutate  func(*Subscription)
		field   string
		message string
	}{
		{"blank name", func(s *Subscription) { s.Name = "   " }, "name", "Name is required"},
		{"zero amount", func(s *Subscription) { s.Amount.Cents = 0 }, "amount", "Amount must be greater than 0"},
		{"negative amount", func(s *Subscription) { s.Amount.Cents = -1 }, "amount", "Amount must be greater than 0"},
		{"lead time too high", func(s *Subscription) { s.ReminderDaysBefore = 31 }, "reminderDaysBefore", "Must be between 0 and 30"},
		{"lead time negative", func(s *Subscription) { s.ReminderDaysBefore = -1 }, "reminderDaysBefore", "Must be between 0 and 30"},
		{"unknown category", func(s *Subscription) { s.Category = "GYM" }, "type", "Invalid type"},
		{"unknown frequency", func(s *Subscription) { s.Frequency = "DAILY" }, "frequency", "Invalid frequency"},
		{"missing start date", func(s *Subscription) { s.StartDate = Date{} }, "startDate", "Start date is required"},
		{"bad currency", func(s *Subscription) { s.Amount.Currency = "US" }, "currency", "Currency must be a 3-letter code"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSubscription()
			tc.mutate(&s)

			ve, ok := IsValidation(s.Validate())
			require.True(t, ok, "expected a validation error")
			assert.Equal(t, tc.message, ve.Fields[tc.field])
		})
	}
}

func TestSubscriptionValidate_LeadTimeBounds(t *testing.T) {
	for _, days := range []int{0, 30} {
		s := validSubscription()
		s.ReminderDaysBefore = days
		assert.NoError(t, s.Validate(), "days=%d", days)
	}
}

func TestSubscriptionNormalize(t *testing.T) {
	s := Subscription{Name: "  Spotify ", Amount: Money{Cents: 100, Currency: " eur"}}
	s.Normalize()
	assert.Equal(t, "Spotify", s.Name)
	assert.Equal(t, "EUR", s.Amount.Currency)

	s = Subscription{}
	s.Normalize()
	assert.Equal(t, DefaultCurrency, s.Amount.Currency)
}

func TestPaymentMethodValidate(t *testing.T) {
	good := PaymentMethod{ID: "pm-1", Nickname: "Main card", Type: Visa, LastFourDigits: "4242"}
	require.NoError(t, good.Validate())

	noDigits := good
	noDigits.LastFourDigits = ""
	require.NoError(t, noDigits.Validate(), "last four digits are optional")

	for _, digits := range []string{"123", "12345", "12a4", "1.23", "-123"} {
		pm := good
		pm.LastFourDigits = digits
		ve, ok := IsValidation(pm.Validate())
		require.True(t, ok, "digits=%q", digits)
		assert.Equal(t, "Must be exactly 4 digits", ve.Fields["lastFourDigits"])
	}

	blank := good
	blank.Nickname = ""
	ve, ok := IsValidation(blank.Validate())
	require.True(t, ok)
	assert.Equal(t, "Nickname is required", ve.Fields["nickname"])

	badType := good
	badType.Type = "CREDIT_CARD"
	_, ok = IsValidation(badType.Validate())
	assert.True(t, ok, "CREDIT_CARD is no longer a payment type")
}

func TestDateAddMonthsClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		from   Date
		months int
		want   Date
	}{
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 3, 31), 1, NewDate(2024, 4, 30)},
		{NewDate(2024, 8, 31), 6, NewDate(2025, 2, 28)},
		{NewDate(2024, 2, 29), 12, NewDate(2025, 2, 28)},
		{NewDate(2024, 12, 15), 1, NewDate(2025, 1, 15)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want.String(), tc.from.AddMonths(tc.months).String(), "%s + %d months", tc.from, tc.months)
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, 2, 15)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-15"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d.Time))

	require.Error(t, json.Unmarshal([]byte(`"15/02/2024"`), &back))
}

func TestDaysUntil(t *testing.T) {
	today := NewDate(2024, 3, 9)
	assert.Equal(t, 0, today.DaysUntil(today))
	assert.Equal(t, 1, today.DaysUntil(NewDate(2024, 3, 10)))
	assert.Equal(t, -1, today.DaysUntil(NewDate(2024, 3, 8)))
	// Spans the US DST change; dates are UTC so no hour is lost.
	assert.Equal(t, 30, today.DaysUntil(NewDate(2024, 4, 8)))
}

func TestEnumLabels(t *testing.T) {
	assert.Equal(t, "Semi Annual", SemiAnnual.Label())
	assert.Equal(t, "Bank Transfer", BankTransfer.Label())
	assert.Len(t, Categories(), 8)
	assert.Len(t, PaymentTypes(), 13)
	assert.Len(t, Frequencies(), 6)
}
