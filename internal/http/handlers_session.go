package http

import (
	"net/http"

	"subly/internal/log"
	"subly/internal/services"
)

// sessionResponse describes the identity the mirror currently writes as.
type sessionResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// handleSignIn verifies the bearer token and switches the mirror identity.
// A failed initial pull is reported in the body with status 200.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		ErrorResponse(http.StatusNotImplemented, "authentication is not configured").Write(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="subly"`)
		ErrorResponse(http.StatusUnauthorized, "missing bearer token").Write(w)
		return
	}

	res, err := s.deps.Session.SignIn(r.Context(), token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="subly", error="invalid_token"`)
		s.fail(w, r, err, log.ComponentAuth, "sign_in")
		return
	}
	OK(res).Write(w)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		ErrorResponse(http.StatusNotImplemented, "authentication is not configured").Write(w)
		return
	}
	OK(sessionResponse{UID: s.deps.Session.UID(), Email: s.deps.Session.Email()}).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		ErrorResponse(http.StatusNotImplemented, "authentication is not configured").Write(w)
		return
	}
	s.deps.Session.SignOut(r.Context())
	NoContent().Write(w)
}

// handleRunReminders runs the reminder evaluation once, outside the schedule.
func (s *Server) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reminders == nil {
		ErrorResponse(http.StatusNotImplemented, "reminders are not configured").Write(w)
		return
	}
	res, err := s.deps.Reminders.Run(r.Context(), services.SlotManual)
	if err != nil {
		s.fail(w, r, err, log.ComponentReminder, log.OpRemind)
		return
	}
	OK(res).Write(w)
}
