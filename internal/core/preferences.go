package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings keys persisted in the local key/value table.
const (
	KeyNotificationsEnabled = "notifications_enabled"
	KeyMorningTime          = "morning_notification_time"
	KeyEveningTime          = "evening_notification_time"
	KeyDefaultReminderDays  = "default_reminder_days"
)

// TimeOfDay is an hour:minute wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NotificationPreferences are the user-facing reminder settings.
type NotificationPreferences struct {
	Enabled             bool      `json:"enabled"`
	MorningTime         TimeOfDay `json:"morningTime"`
	EveningTime         TimeOfDay `json:"eveningTime"`
	DefaultReminderDays int       `json:"defaultReminderDays"`
}

func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:             true,
		MorningTime:         TimeOfDay{Hour: 9},
		EveningTime:         TimeOfDay{Hour: 18},
		DefaultReminderDays: DefaultReminderDaysBefore,
	}
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// CronSpec renders t as a daily five-field cron expression.
func (t TimeOfDay) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (p NotificationPreferences) Validate() error {
	ve := NewValidationError()
	if p.DefaultReminderDays < 0 || p.DefaultReminderDays > MaxReminderDaysBefore {
		ve.Add("defaultReminderDays", "Must be between 0 and 30")
	}
	return ve.Err()
}

// ToSettings flattens p into key/value rows.
func (p NotificationPreferences) ToSettings() map[string]string {
	return map[string]string{
		KeyNotificationsEnabled: strconv.FormatBool(p.Enabled),
		KeyMorningTime:          p.MorningTime.String(),
		KeyEveningTime:          p.EveningTime.String(),
		KeyDefaultReminderDays:  strconv.Itoa(p.DefaultReminderDays),
	}
}

// PreferencesFromSettings reads p from key/value rows. Missing keys keep
// their defaults; malformed values are reported.
func PreferencesFromSettings(kv map[string]string) (NotificationPreferences, error) {
	p := DefaultPreferences()
	if v, ok := kv[KeyNotificationsEnabled]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("setting %s: %w", KeyNotificationsEnabled, err)
		}
		p.Enabled = b
	}
	if v, ok := kv[KeyMorningTime]; ok {
		t, err := ParseTimeOfDay(v)
		if err != nil {
			return p, fmt.Errorf("setting %s: %w", KeyMorningTime, err)
		}
		p.MorningTime = t
	}
	if v, ok := kv[KeyEveningTime]; ok {
		t, err := ParseTimeOfDay(v)
		if err != nil {
			return p, fmt.Errorf("setting %s: %w", KeyEveningTime, err)
		}
		p.EveningTime = t
	}
	if v, ok := kv[KeyDefaultReminderDays]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("setting %s: %w", KeyDefaultReminderDays, err)
		}
		p.DefaultReminderDays = n
	}
	return p, nil
}
