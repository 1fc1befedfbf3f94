package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"subly/internal/log"
)

// streamHeartbeat keeps idle event streams alive through proxies.
const streamHeartbeat = 25 * time.Second

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Dashboard.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpRead)
		return
	}
	OK(stats).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Dashboard.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpRead)
		return
	}
	d.Upcoming = nonNil(d.Upcoming)
	OK(d).Write(w)
}

// handleDashboardStream sends a "dashboard" event now and after every change
// to the active subscriptions, until the client goes away.
func (s *Server) handleDashboardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.deps.Active == nil {
		ErrorResponse(http.StatusNotImplemented, "streaming unsupported").Write(w)
		return
	}

	ctx := r.Context()
	updates, err := s.deps.Active.ObserveActiveSubscriptions(ctx)
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpRead)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case active, ok := <-updates:
			if !ok {
				return
			}
			d := s.deps.Dashboard.FromSnapshot(active)
			d.Upcoming = nonNil(d.Upcoming)
			body, err := json.Marshal(d)
			if err != nil {
				log.FromContext(ctx).ErrorContext(ctx, "Failed to encode dashboard event", log.FieldError, err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: dashboard\ndata: %s\n\n", body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
