// Package notify renders reminder notifications and hands them to a
// delivery channel.
package notify

import (
	"fmt"

	"subly/internal/core"
)

type Kind string

const (
	KindSubscription Kind = "subscription"
	KindSummary      Kind = "summary"
)

const deepLinkPrefix = "subly://subscriptions/"

type Notification struct {
	Kind           Kind    `json:"kind"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	SubscriptionID string  `json:"subscriptionId,omitempty"`
	DeepLink       string  `json:"deepLink,omitempty"`
	Count          int     `json:"count,omitempty"`
	Total          float64 `json:"total,omitempty"`
}

// DeepLink addresses a subscription detail view.
func DeepLink(id string) string {
	return deepLinkPrefix + id
}

// Build renders one notification per reminder and, when more than one is
// due, a trailing summary.
func Build(reminders []core.Reminder) []Notification {
	out := make([]Notification, 0, len(reminders)+1)
	for _, r := range reminders {
		out = append(out, ForSubscription(r))
	}
	if len(reminders) > 1 {
		out = append(out, Summary(reminders))
	}
	return out
}

func ForSubscription(r core.Reminder) Notification {
	s := r.Subscription
	amount := s.Amount.String()

	n := Notification{
		Kind:           KindSubscription,
		SubscriptionID: s.ID,
		DeepLink:       DeepLink(s.ID),
	}
	switch r.DaysUntil {
	case 0:
		n.Title = "Payment Due Today: " + s.Name
		n.Body = amount + " is due today"
	case 1:
		n.Title = "Payment Due Tomorrow: " + s.Name
		n.Body = amount + " is due tomorrow"
	default:
		n.Title = "Upcoming Payment: " + s.Name
		n.Body = fmt.Sprintf("%s due on %s (%d days)", amount, s.NextBillingDate.Format("Jan 02"), r.DaysUntil)
	}
	return n
}

// Summary totals raw amounts without conversion or frequency
// normalization.
func Summary(reminders []core.Reminder) Notification {
	var cents int64
	currency := ""
	mixed := false
	for i, r := range reminders {
		cents += r.Subscription.Amount.Cents
		if i == 0 {
			currency = r.Subscription.Amount.Currency
		} else if r.Subscription.Amount.Currency != currency {
			mixed = true
		}
	}

	total := float64(cents) / 100
	body := fmt.Sprintf("Total: %s %.2f", currency, total)
	if mixed {
		body = fmt.Sprintf("Total: %.2f (mixed currencies)", total)
	}

	title := fmt.Sprintf("%d Upcoming Payments", len(reminders))
	if len(reminders) == 1 {
		title = "1 Upcoming Payment"
	}
	return Notification{
		Kind:  KindSummary,
		Title: title,
		Body:  body,
		Count: len(reminders),
		Total: total,
	}
}
