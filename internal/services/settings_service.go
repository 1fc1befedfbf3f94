package services

import (
	"context"
	"fmt"
	"log/slog"

	"subly/internal/core"
)

// PreferencesInput is a partial update; nil fields keep their value.
type PreferencesInput struct {
	Enabled             *bool           `json:"enabled"`
	MorningTime         *core.TimeOfDay `json:"morningTime"`
	EveningTime         *core.TimeOfDay `json:"eveningTime"`
	DefaultReminderDays *int            `json:"defaultReminderDays"`
}

type SettingsService struct {
	repo PreferencesRepository
}

func NewSettingsService(repo PreferencesRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (core.NotificationPreferences, error) {
	return s.repo.GetPreferences(ctx)
}

// Update applies in over the stored preferences. Saving signals observers,
// which is how the scheduler picks up new reminder times.
func (s *SettingsService) Update(ctx context.Context, in PreferencesInput) (core.NotificationPreferences, error) {
	p, err := s.repo.GetPreferences(ctx)
	if err != nil {
		return core.NotificationPreferences{}, err
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	if in.MorningTime != nil {
		p.MorningTime = *in.MorningTime
	}
	if in.EveningTime != nil {
		p.EveningTime = *in.EveningTime
	}
	if in.DefaultReminderDays != nil {
		p.DefaultReminderDays = *in.DefaultReminderDays
	}
	if err := p.Validate(); err != nil {
		return core.NotificationPreferences{}, err
	}

	if err := s.repo.SavePreferences(ctx, p); err != nil {
		return core.NotificationPreferences{}, fmt.Errorf("save preferences: %w", err)
	}
	slog.InfoContext(ctx, "Preferences updated",
		"enabled", p.Enabled,
		"morning", p.MorningTime.String(),
		"evening", p.EveningTime.String(),
		"default_reminder_days", p.DefaultReminderDays)
	return p, nil
}

func (s *SettingsService) Observe(ctx context.Context) (<-chan core.NotificationPreferences, error) {
	return s.repo.ObservePreferences(ctx)
}
