package core

import "sort"

// Reminder is a subscription that falls inside its reminder window.
type Reminder struct {
	Subscription Subscription
	DaysUntil    int
}

// DaysUntilDue is the number of calendar days from today to the next
// billing date; negative when overdue.
func DaysUntilDue(today Date, s Subscription) int {
	return today.DaysUntil(s.NextBillingDate)
}

// IsReminderDue reports whether s is active and
// 0 <= days until due <= ReminderDaysBefore.
func IsReminderDue(today Date, s Subscription) bool {
	if !s.Active {
		return false
	}
	days := DaysUntilDue(today, s)
	return days >= 0 && days <= s.ReminderDaysBefore
}

// EvaluateReminders selects the subscriptions that need a notification
// today, nearest due date first.
func EvaluateReminders(today Date, subs []Subscription) []Reminder {
	out := make([]Reminder, 0)
	for _, s := range subs {
		if !IsReminderDue(today, s) {
			continue
		}
		out = append(out, Reminder{Subscription: s, DaysUntil: DaysUntilDue(today, s)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].Subscription.Name < out[j].Subscription.Name
	})
	return out
}

// MaxReminderWindow is the widest lead time any subscription may use, so a
// query for subscriptions due within this many days covers every reminder.
const MaxReminderWindow = MaxReminderDaysBefore
