package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"subly/internal/auth"
	"subly/internal/core"
	"subly/internal/log"
	"subly/internal/metrics"
	"subly/internal/services"
)

// ReminderRunner performs a manual reminder pass.
type ReminderRunner interface {
	Run(ctx context.Context, slot string) (services.RunResult, error)
}

// ActiveObserver streams the active subscription set after every change.
type ActiveObserver interface {
	ObserveActiveSubscriptions(ctx context.Context) (<-chan []core.Subscription, error)
}

// Pinger reports whether the local store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Schedule exposes the next reminder fire times, when a scheduler runs
// in-process.
type Schedule interface {
	Next(slot string) (time.Time, bool)
}

// Deps groups what the API serves. Session, Reminders, Schedule and
// Metrics may be nil.
type Deps struct {
	Subscriptions  *services.SubscriptionService
	PaymentMethods *services.PaymentMethodService
	Dashboard      *services.DashboardService
	Settings       *services.SettingsService
	Active         ActiveObserver
	Store          Pinger
	Session        *auth.Session
	Reminders      ReminderRunner
	Schedule       Schedule
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	Hardening      Hardening
}

// Server is the JSON API over the local store.
type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	rateLimiter *rateLimiter
	guard       *requestGuard

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:        deps,
		logger:      logger,
		rateLimiter: newRateLimiter(deps.Hardening.RateLimitRequests, deps.Hardening.RateLimitWindow),
		guard:       newRequestGuard(deps.Hardening, logger.Slog()),
	}

	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.withSecurityHeaders(pattern, h))
	}

	route("GET /api/subscriptions", s.handleListSubscriptions)
	route("POST /api/subscriptions", s.handleCreateSubscription)
	route("GET /api/subscriptions/upcoming", s.handleUpcoming)
	route("GET /api/subscriptions/{id}", s.handleGetSubscription)
	route("PUT /api/subscriptions/{id}", s.handleUpdateSubscription)
	route("DELETE /api/subscriptions/{id}", s.handleDeleteSubscription)
	route("POST /api/subscriptions/{id}/paid", s.handleMarkPaid)
	route("POST /api/subscriptions/{id}/active", s.handleSetActive)

	route("GET /api/payment-methods", s.handleListPaymentMethods)
	route("POST /api/payment-methods", s.handleCreatePaymentMethod)
	route("GET /api/payment-methods/{id}", s.handleGetPaymentMethod)
	route("PUT /api/payment-methods/{id}", s.handleUpdatePaymentMethod)
	route("DELETE /api/payment-methods/{id}", s.handleDeletePaymentMethod)

	route("GET /api/stats", s.handleStats)
	route("GET /api/dashboard", s.handleDashboard)
	route("GET /api/dashboard/stream", s.handleDashboardStream)

	route("GET /api/settings", s.handleGetSettings)
	route("PUT /api/settings", s.handleUpdateSettings)

	route("GET /api/session", s.handleGetSession)
	route("POST /api/session", s.handleSignIn)
	route("DELETE /api/session", s.handleSignOut)
	route("POST /api/reminders/run", s.handleRunReminders)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds the request ID, rate limiting on writes, security
// headers, request logging and metrics around next.
func (s *Server) withSecurityHeaders(route string, next http.HandlerFunc) http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := s.guard.clientIP(r)

		if s.guard.suspicious(r) {
			s.deps.Metrics.SecurityEvent("suspicious")
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.deps.Metrics.SecurityEvent("rate_limited")
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(s.rateLimiter.retryAfter()))
			ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		elapsed := time.Since(start)
		s.deps.Metrics.HTTPRequest(r.Method, route, rw.statusCode, elapsed)
		log.NewStructuredLogger(log.FromContext(ctx)).LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})

	withLogger := log.RequestIDMiddleware(requestID)(handler)
	return log.Middleware(s.logger)(withLogger)
}

// requestID reuses an incoming X-Request-ID or mints a new one.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets server-sent events through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "error", err)
			http.Error(w, "local store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
