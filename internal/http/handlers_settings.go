package http

import (
	"net/http"
	"time"

	"subly/internal/core"
	"subly/internal/log"
	"subly/internal/services"
)

// settingsResponse is the stored preferences plus, when a scheduler runs
// in this process, the next time each reminder slot fires.
type settingsResponse struct {
	core.NotificationPreferences
	NextRuns map[string]time.Time `json:"nextRuns,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentReminder, log.OpRead)
		return
	}
	OK(s.withSchedule(p)).Write(w)
}

// handleUpdateSettings applies a partial update. The scheduler follows the
// change through the preferences feed, so the response may still show the
// previous fire times.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in services.PreferencesInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	p, err := s.deps.Settings.Update(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentReminder, log.OpUpdate)
		return
	}
	OK(s.withSchedule(p)).Write(w)
}

func (s *Server) withSchedule(p core.NotificationPreferences) settingsResponse {
	resp := settingsResponse{NotificationPreferences: p}
	if s.deps.Schedule == nil {
		return resp
	}
	for _, slot := range []string{services.SlotMorning, services.SlotEvening} {
		if next, ok := s.deps.Schedule.Next(slot); ok {
			if resp.NextRuns == nil {
				resp.NextRuns = make(map[string]time.Time)
			}
			resp.NextRuns[slot] = next
		}
	}
	return resp
}
