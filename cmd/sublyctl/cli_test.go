package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/core"
)

const testSecret = "sublyctl-test-secret"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "subly.db"))
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("MIRROR_TRANSPORT", "direct")
	t.Setenv("TZ_NAME", "UTC")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("AMQP_URL", "")
	t.Setenv("NOTIFY_VIA_QUEUE", "false")
	return dir
}

func executeCLI(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()

	c := newCtl()
	root := newRootCmd(c)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", filepath.Join(dir, "sublyctl.yaml")}, args...))

	err := root.Execute()
	require.NoError(t, c.close())
	return stdout.String(), stderr.String(), err
}

func addSubscription(t *testing.T, dir string, args ...string) core.Subscription {
	t.Helper()
	stdout, _, err := executeCLI(t, dir, append([]string{"sub", "add", "--json"}, args...)...)
	require.NoError(t, err)

	var sub core.Subscription
	require.NoError(t, json.Unmarshal([]byte(stdout), &sub))
	require.NotEmpty(t, sub.ID)
	return sub
}

func todayUTC() core.Date {
	return core.DateOf(time.Now().UTC())
}

func TestSubAddListShow(t *testing.T) {
	dir := setupEnv(t)

	sub := addSubscription(t, dir,
		"--name", "Netflix",
		"--amount", "15.49",
		"--type", "streaming",
		"--start", "2024-03-01")
	assert.Equal(t, core.Streaming, sub.Category)
	assert.Equal(t, int64(1549), sub.Amount.Cents)
	assert.Equal(t, "2024-04-01", sub.NextBillingDate.String())
	assert.True(t, sub.Active)

	stdout, _, err := executeCLI(t, dir, "sub", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Netflix")
	assert.Contains(t, stdout, "USD 15.49")

	stdout, _, err = executeCLI(t, dir, "sub", "show", sub.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Netflix")
	assert.Contains(t, stdout, "2024-04-01")
}

func TestSubAddRejectsInvalidInput(t *testing.T) {
	dir := setupEnv(t)

	_, _, err := executeCLI(t, dir, "sub", "add", "--name", "Broken", "--amount", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
	assert.Contains(t, err.Error(), "amount: Amount must be greater than 0")

	_, _, err = executeCLI(t, dir, "sub", "add", "--amount", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "name" not set`)
}

func TestSubEditPauseResumeDelete(t *testing.T) {
	dir := setupEnv(t)
	sub := addSubscription(t, dir, "--name", "Gym", "--amount", "30", "--type", "membership")

	stdout, _, err := executeCLI(t, dir, "sub", "edit", sub.ID, "--amount", "35.5", "--json")
	require.NoError(t, err)
	var edited core.Subscription
	require.NoError(t, json.Unmarshal([]byte(stdout), &edited))
	assert.Equal(t, int64(3550), edited.Amount.Cents)
	assert.Equal(t, "Gym", edited.Name)
	assert.Equal(t, sub.NextBillingDate, edited.NextBillingDate)

	stdout, _, err = executeCLI(t, dir, "sub", "pause", sub.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Gym is now paused")

	stdout, _, err = executeCLI(t, dir, "sub", "list", "--active")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No subscriptions.")

	_, _, err = executeCLI(t, dir, "sub", "resume", sub.ID)
	require.NoError(t, err)

	_, _, err = executeCLI(t, dir, "sub", "delete", sub.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, _, err = executeCLI(t, dir, "sub", "delete", sub.ID, "--yes")
	require.NoError(t, err)

	_, _, err = executeCLI(t, dir, "sub", "show", sub.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSubPaidAdvancesBillingDate(t *testing.T) {
	dir := setupEnv(t)
	sub := addSubscription(t, dir, "--name", "Cloud", "--amount", "2.99", "--start", "2024-01-31")
	require.Equal(t, "2024-02-29", sub.NextBillingDate.String())

	stdout, _, err := executeCLI(t, dir, "sub", "paid", sub.ID, "--json")
	require.NoError(t, err)
	var paid core.Subscription
	require.NoError(t, json.Unmarshal([]byte(stdout), &paid))
	assert.Equal(t, "2024-03-29", paid.NextBillingDate.String())
}

func TestPaymentMethodInUse(t *testing.T) {
	dir := setupEnv(t)

	stdout, _, err := executeCLI(t, dir, "pm", "add", "--nickname", "Work card", "--type", "visa", "--last4", "4242", "--json")
	require.NoError(t, err)
	var pm core.PaymentMethod
	require.NoError(t, json.Unmarshal([]byte(stdout), &pm))
	assert.Equal(t, core.Visa, pm.Type)

	addSubscription(t, dir, "--name", "Music", "--amount", "9.99", "--payment-method", pm.ID)

	stdout, _, err = executeCLI(t, dir, "pm", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Work card")
	assert.Contains(t, stdout, "•••• 4242")

	_, _, err = executeCLI(t, dir, "pm", "delete", pm.ID)
	require.Error(t, err)
	var inUse *core.InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, 1, inUse.Count)

	_, _, err = executeCLI(t, dir, "pm", "add", "--nickname", "Bad", "--last4", "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lastFourDigits: Must be exactly 4 digits")
}

func TestStatsAndRemind(t *testing.T) {
	dir := setupEnv(t)
	start := todayUTC().AddDays(-5)
	addSubscription(t, dir,
		"--name", "Spotify",
		"--amount", "10",
		"--frequency", "weekly",
		"--start", start.String(),
		"--remind", "2")

	stdout, _, err := executeCLI(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Spending")
	assert.Contains(t, stdout, "Spotify")

	stdout, _, err = executeCLI(t, dir, "stats", "--json")
	require.NoError(t, err)
	var d core.Dashboard
	require.NoError(t, json.Unmarshal([]byte(stdout), &d))
	assert.Equal(t, 1, d.Stats.ActiveCount)
	require.Len(t, d.Upcoming, 1)

	stdout, _, err = executeCLI(t, dir, "remind")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 due, 1 delivered")
}

func TestSettingsSetAndShow(t *testing.T) {
	dir := setupEnv(t)

	stdout, _, err := executeCLI(t, dir, "settings", "set", "--morning", "07:15", "--default-days", "5", "--json")
	require.NoError(t, err)
	var view struct {
		Enabled             bool                 `json:"enabled"`
		MorningTime         string               `json:"morningTime"`
		DefaultReminderDays int                  `json:"defaultReminderDays"`
		NextRuns            map[string]time.Time `json:"nextRuns"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.True(t, view.Enabled)
	assert.Equal(t, "07:15", view.MorningTime)
	assert.Equal(t, 5, view.DefaultReminderDays)
	require.Contains(t, view.NextRuns, "morning")
	assert.Equal(t, 7, view.NextRuns["morning"].UTC().Hour())
	assert.Equal(t, 15, view.NextRuns["morning"].Minute())

	stdout, _, err = executeCLI(t, dir, "settings", "set", "--enabled=false")
	require.NoError(t, err)
	assert.Contains(t, stdout, "off")
	assert.NotContains(t, stdout, "Next morning run")

	_, _, err = executeCLI(t, dir, "settings", "set", "--evening", "25:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--evening")

	sub := addSubscription(t, dir, "--name", "News", "--amount", "4")
	assert.Equal(t, 5, sub.ReminderDaysBefore)
}

func TestLoginStoresToken(t *testing.T) {
	dir := setupEnv(t)

	_, _, err := executeCLI(t, dir, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")

	stdout, _, err := executeCLI(t, dir, "token", "--uid", "user-42", "--email", "me@example.com")
	require.NoError(t, err)
	token := strings.TrimSpace(stdout)
	require.NotEmpty(t, token)

	stdout, _, err = executeCLI(t, dir, "login", "--token", token)
	require.NoError(t, err)
	assert.Contains(t, stdout, "user-42")

	raw, err := os.ReadFile(filepath.Join(dir, "sublyctl.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), token)

	stdout, _, err = executeCLI(t, dir, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "user-42 <me@example.com>\n", stdout)

	_, _, err = executeCLI(t, dir, "logout")
	require.NoError(t, err)
	_, _, err = executeCLI(t, dir, "whoami")
	require.Error(t, err)
}

func TestLoginRejectsBadToken(t *testing.T) {
	dir := setupEnv(t)

	_, _, err := executeCLI(t, dir, "login", "--token", "not-a-jwt")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "sublyctl.yaml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAuthDisabled(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, _, err := executeCLI(t, dir, "token", "--uid", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, errAuthDisabled)
}
