package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"subly/internal/log"
)

func TestRequestGuard_ClientIP(t *testing.T) {
	guard := newRequestGuard(Hardening{TrustedProxies: []string{"10.0.0.0/8", "not-a-cidr"}}, log.Discard().Slog())
	assert.Len(t, guard.proxies, 1)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct peer", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores headers", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.1.2.3:5000", "198.51.100.1, 10.1.2.3", "", "198.51.100.1"},
		{"trusted proxy real ip", "10.1.2.3:5000", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy garbage", "10.1.2.3:5000", "nonsense", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, guard.clientIP(r))
		})
	}
}

func TestRequestGuard_Suspicious(t *testing.T) {
	guard := newRequestGuard(Hardening{SuspiciousAgents: []string{" CurlBot "}}, log.Discard().Slog())

	flagged := func(method, target, agent string) bool {
		r := httptest.NewRequest(method, target, nil)
		r.Header.Set("User-Agent", agent)
		return guard.suspicious(r)
	}

	assert.False(t, flagged(http.MethodGet, "/api/subscriptions", "Mozilla/5.0"))
	assert.True(t, flagged(http.MethodGet, "/api/subscriptions", "curlbot/1.0"))
	assert.False(t, flagged(http.MethodGet, "/api/subscriptions", "nikto"), "only configured agents are flagged")
	assert.True(t, flagged(http.MethodGet, "/.env", "Mozilla/5.0"))
	assert.True(t, flagged(http.MethodGet, "/api/stats?q=union+select", "Mozilla/5.0"))
	assert.True(t, flagged("TRACE", "/api/stats", "Mozilla/5.0"))
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(3, 10*time.Second)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("a"), "request %d", i)
	}
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "clients are counted separately")

	now = now.Add(5 * time.Second)
	assert.False(t, rl.allow("a"), "still inside the window")

	now = now.Add(5 * time.Second)
	assert.True(t, rl.allow("a"), "a new window starts")
	assert.Equal(t, 10, rl.retryAfter())
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := newRateLimiter(0, 0)
	defer rl.stop()
	assert.Equal(t, defaultRateLimitRequests, rl.limit)
	assert.Equal(t, defaultRateLimitWindow, rl.window)
	assert.Equal(t, 60, rl.retryAfter())
}

func TestRateLimiter_CleanupStaleEntries(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("old")
	now = now.Add(11 * time.Minute)
	rl.allow("fresh")
	rl.cleanupStaleEntries()

	assert.NotContains(t, rl.clients, "old")
	assert.Contains(t, rl.clients, "fresh")
}
