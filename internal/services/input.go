package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"subly/internal/core"
)

// Decimal is a user-entered amount. JSON accepts either a string ("9.99",
// "9,99") or a bare number.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Decimal(n.String())
	return nil
}

// SubscriptionInput carries the user-editable fields of a subscription.
// Nil pointers leave the current value (or the default on create).
type SubscriptionInput struct {
	Name               string         `json:"name"`
	Category           core.Category  `json:"type"`
	Amount             Decimal        `json:"amount"`
	Currency           string         `json:"currency"`
	Frequency          core.Frequency `json:"frequency"`
	StartDate          core.Date      `json:"startDate"`
	PaymentMethodID    string         `json:"paymentMethodId"`
	Notes              string         `json:"notes"`
	Active             *bool          `json:"isActive"`
	ReminderDaysBefore *int           `json:"reminderDaysBefore"`
}

// money parses the amount in the input currency, reporting blank and
// unparsable input the way the add/edit form does.
func (in SubscriptionInput) money(ve *core.ValidationError) core.Money {
	raw := strings.TrimSpace(string(in.Amount))
	if raw == "" {
		ve.Add("amount", "Amount is required")
		return core.Money{Currency: in.Currency}
	}
	m, err := core.NewMoney(raw, in.Currency)
	if err != nil {
		if errors.Is(err, core.ErrAmountRequired) {
			ve.Add("amount", "Amount is required")
		} else {
			ve.Add("amount", "Invalid amount")
		}
		return core.Money{Currency: in.Currency}
	}
	return m
}

// apply copies in onto s. Amount parse errors are collected in ve.
func (in SubscriptionInput) apply(s *core.Subscription, ve *core.ValidationError) {
	s.Name = in.Name
	s.Category = in.Category
	s.Amount = in.money(ve)
	s.Frequency = in.Frequency
	s.StartDate = in.StartDate
	s.PaymentMethodID = in.PaymentMethodID
	s.Notes = in.Notes
	if in.Active != nil {
		s.Active = *in.Active
	}
	if in.ReminderDaysBefore != nil {
		s.ReminderDaysBefore = *in.ReminderDaysBefore
	}
	s.Normalize()
}

// PaymentMethodInput carries the user-editable fields of a payment method.
type PaymentMethodInput struct {
	Nickname       string           `json:"nickname"`
	Type           core.PaymentType `json:"type"`
	LastFourDigits string           `json:"lastFourDigits"`
	Icon           string           `json:"icon"`
}

func (in PaymentMethodInput) apply(pm *core.PaymentMethod) {
	pm.Nickname = in.Nickname
	pm.Type = in.Type
	pm.LastFourDigits = in.LastFourDigits
	pm.Icon = in.Icon
	pm.Normalize()
}

// mergeValidation folds ve into the result of validate so every problem
// is reported at once. Amount parse messages win over the generic one.
func mergeValidation(ve *core.ValidationError, err error) error {
	if err == nil {
		return ve.Err()
	}
	other, ok := core.IsValidation(err)
	if !ok {
		return err
	}
	for field, msg := range other.Fields {
		if _, seen := ve.Fields[field]; !seen {
			ve.Add(field, msg)
		}
	}
	return ve.Err()
}
