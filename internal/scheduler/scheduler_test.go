package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/core"
	"subly/internal/log"
	"subly/internal/services"
	"subly/internal/storage"
)

type fakeRunner struct {
	mu    sync.Mutex
	fails int
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, slot string) (services.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, slot)
	if f.fails > 0 {
		f.fails--
		return services.RunResult{}, errors.New("database is locked")
	}
	return services.RunResult{Slot: slot}, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "subly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestScheduler(t *testing.T, runner Runner, prefs PreferencesSource) (*Scheduler, *[]time.Duration) {
	t.Helper()
	s := New(runner, prefs, Config{Location: time.UTC}, log.Discard().Slog())
	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return s, &delays
}

func TestApply_ReplacesNotStacks(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{}, nil)

	p := core.DefaultPreferences()
	s.Apply(p)
	assert.Len(t, s.cron.Entries(), 2)

	spec, ok := s.Spec(services.SlotMorning)
	require.True(t, ok)
	assert.Equal(t, "0 9 * * *", spec)
	spec, _ = s.Spec(services.SlotEvening)
	assert.Equal(t, "0 18 * * *", spec)

	eveningID := s.entries[services.SlotEvening]
	p.MorningTime = core.TimeOfDay{Hour: 7, Minute: 45}
	s.Apply(p)
	assert.Len(t, s.cron.Entries(), 2)
	spec, _ = s.Spec(services.SlotMorning)
	assert.Equal(t, "45 7 * * *", spec)
	assert.Equal(t, eveningID, s.entries[services.SlotEvening], "unchanged slot keeps its entry")

	next, ok := s.Next(services.SlotMorning)
	require.True(t, ok)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 45, next.Minute())

	p.Enabled = false
	s.Apply(p)
	assert.Empty(t, s.cron.Entries())
	_, ok = s.Next(services.SlotMorning)
	assert.False(t, ok)
}

func TestRunWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		runner := &fakeRunner{fails: 2}
		s, delays := newTestScheduler(t, runner, nil)

		res, err := s.RunWithRetry(context.Background(), services.SlotMorning)
		require.NoError(t, err)
		assert.Equal(t, services.SlotMorning, res.Slot)
		assert.Equal(t, 3, runner.Calls())
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		runner := &fakeRunner{fails: 10}
		s, _ := newTestScheduler(t, runner, nil)

		_, err := s.RunWithRetry(context.Background(), services.SlotEvening)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed after 3 attempts")
		assert.Equal(t, 3, runner.Calls())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		runner := &fakeRunner{fails: 10}
		s, _ := newTestScheduler(t, runner, nil)
		s.sleep = sleepContext

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.RunWithRetry(ctx, services.SlotMorning)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, runner.Calls())
	})
}

func TestBackoff(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{12, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestStart_FollowsPreferenceChanges(t *testing.T) {
	repo := newRepo(t)
	s, _ := newTestScheduler(t, &fakeRunner{}, repo)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(ctx), "second start is rejected")

	spec, ok := s.Spec(services.SlotMorning)
	require.True(t, ok)
	assert.Equal(t, "0 9 * * *", spec)

	p := core.DefaultPreferences()
	p.EveningTime = core.TimeOfDay{Hour: 20, Minute: 30}
	require.NoError(t, repo.SavePreferences(ctx, p))

	assert.Eventually(t, func() bool {
		spec, _ := s.Spec(services.SlotEvening)
		return spec == "30 20 * * *"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, s.cron.Entries(), 2)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(stopCtx), "stop is idempotent")
}
