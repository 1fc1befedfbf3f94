package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseDaysParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "missing uses default", query: "", want: 7},
		{name: "explicit value", query: "?days=14", want: 14},
		{name: "zero is today only", query: "?days=0", want: 0},
		{name: "negative uses default", query: "?days=-3", want: 7},
		{name: "garbage uses default", query: "?days=abc", want: 7},
		{name: "clamped", query: "?days=5000", want: maxUpcomingDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/upcoming"+tt.query, nil)
			if got := ParseDaysParam(req, 7); got != tt.want {
				t.Errorf("ParseDaysParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"?confirm=true", true},
		{"?confirm=1", true},
		{"?confirm=false", false},
		{"?confirm=yes", false},
		{"", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodDelete, "/x"+tt.query, nil)
		if got := ParseBoolParam(req, "confirm"); got != tt.want {
			t.Errorf("ParseBoolParam(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"Netflix"}`},
		{name: "empty", body: "", wantErr: "empty"},
		{name: "malformed", body: `{"name":`, wantErr: "invalid JSON"},
		{name: "unknown field", body: `{"nme":"x"}`, wantErr: "unknown field"},
		{name: "trailing object", body: `{"name":"a"}{"name":"b"}`, wantErr: "single JSON object"},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), req, &p)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.Name != "Netflix" {
					t.Errorf("Name = %q, want Netflix", p.Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc ", "abc", true},
		{"Basic dXNlcg==", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  req\x00-1\n "); got != "req-1" {
		t.Errorf("sanitizeInput() = %q, want %q", got, "req-1")
	}
}
