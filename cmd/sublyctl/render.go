package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"subly/internal/core"
	"subly/internal/services"
)

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	muted   lipgloss.Style
	amount  lipgloss.Style
	warning lipgloss.Style
	border  lipgloss.Style
	label   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241")).Padding(0, 1),
		cell:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1),
		muted:   lipgloss.NewStyle().Faint(true),
		amount:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		border:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22),
	}
}

func (s styles) table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func (s styles) pairs(kv [][2]string) string {
	lines := make([]string, 0, len(kv))
	for _, p := range kv {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(p[0]), p[1]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSubscriptions(s styles, subs []core.Subscription, today core.Date) string {
	if len(subs) == 0 {
		return s.muted.Render("No subscriptions.")
	}
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, []string{
			sub.ID,
			sub.Name,
			sub.Category.Label(),
			sub.Amount.String(),
			sub.Frequency.Label(),
			sub.NextBillingDate.String(),
			dueLabel(today, sub),
			activeLabel(sub.Active),
		})
	}
	return s.table([]string{"ID", "Name", "Type", "Amount", "Frequency", "Next bill", "Due", "Status"}, rows)
}

func renderSubscription(s styles, sub core.Subscription, today core.Date) string {
	pm := sub.PaymentMethodID
	if pm == "" {
		pm = "-"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(sub.Name),
		s.pairs([][2]string{
			{"ID", sub.ID},
			{"Type", sub.Category.Label()},
			{"Amount", s.amount.Render(sub.Amount.String())},
			{"Frequency", sub.Frequency.Label()},
			{"Monthly", fmt.Sprintf("%.2f", sub.MonthlyAmount())},
			{"Start date", sub.StartDate.String()},
			{"Next bill", sub.NextBillingDate.String() + " (" + dueLabel(today, sub) + ")"},
			{"Payment method", pm},
			{"Remind days before", strconv.Itoa(sub.ReminderDaysBefore)},
			{"Status", activeLabel(sub.Active)},
			{"Notes", sub.Notes},
		}),
	)
}

func renderPaymentMethods(s styles, usage []core.PaymentMethodUsage) string {
	if len(usage) == 0 {
		return s.muted.Render("No payment methods.")
	}
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{
			u.ID,
			u.Nickname,
			u.Type.Label(),
			u.MaskedDigits(),
			strconv.Itoa(u.SubscriptionCount),
		})
	}
	return s.table([]string{"ID", "Nickname", "Type", "Card", "Used by"}, rows)
}

func renderDashboard(s styles, d core.Dashboard, today core.Date) string {
	parts := []string{
		s.title.Render("Spending"),
		s.pairs([][2]string{
			{"Monthly", s.amount.Render(fmt.Sprintf("%.2f", d.Stats.TotalMonthly))},
			{"Yearly", fmt.Sprintf("%.2f", d.Stats.TotalYearly)},
			{"Active subscriptions", strconv.Itoa(d.Stats.ActiveCount)},
		}),
	}

	if len(d.Stats.ByCategory) > 0 {
		cats := make([]core.Category, 0, len(d.Stats.ByCategory))
		for c := range d.Stats.ByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool { return d.Stats.ByCategory[cats[i]] > d.Stats.ByCategory[cats[j]] })
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{c.Label(), fmt.Sprintf("%.2f", d.Stats.ByCategory[c])})
		}
		parts = append(parts, "", s.title.Render("By type"), s.table([]string{"Type", "Monthly"}, rows))
	}

	parts = append(parts, "", s.title.Render(fmt.Sprintf("Upcoming (%d days)", core.DashboardWindowDays)))
	if len(d.Upcoming) == 0 {
		parts = append(parts, s.muted.Render("Nothing due."))
	} else {
		rows := make([][]string, 0, len(d.Upcoming))
		for _, sub := range d.Upcoming {
			rows = append(rows, []string{sub.Name, sub.Amount.String(), sub.NextBillingDate.String(), dueLabel(today, sub)})
		}
		parts = append(parts, s.table([]string{"Name", "Amount", "Next bill", "Due"}, rows))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderPreferences(s styles, p core.NotificationPreferences, next map[string]time.Time) string {
	kv := [][2]string{
		{"Notifications", enabledLabel(p.Enabled)},
		{"Morning", p.MorningTime.String()},
		{"Evening", p.EveningTime.String()},
		{"Default remind days", strconv.Itoa(p.DefaultReminderDays)},
	}
	for _, slot := range []string{services.SlotMorning, services.SlotEvening} {
		if t, ok := next[slot]; ok {
			kv = append(kv, [2]string{"Next " + slot + " run", t.Format("2006-01-02 15:04 MST")})
		}
	}
	return s.pairs(kv)
}

func renderRunResult(s styles, res services.RunResult) string {
	if res.Disabled {
		return s.warning.Render("Notifications are disabled.")
	}
	line := fmt.Sprintf("%d due, %d delivered", res.Due, res.Delivered)
	if res.Failed > 0 {
		return line + ", " + s.warning.Render(fmt.Sprintf("%d failed", res.Failed))
	}
	return line
}

func dueLabel(today core.Date, sub core.Subscription) string {
	days := core.DaysUntilDue(today, sub)
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return "in " + strconv.Itoa(days) + " days"
	}
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "paused"
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// parseEnum upper-cases user input and maps dashes to underscores so
// "semi-annual" matches SEMI_ANNUAL.
func parseEnum(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
}
