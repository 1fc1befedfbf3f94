package http

import (
	"net/http"

	"subly/internal/core"
	"subly/internal/log"
	"subly/internal/services"
)

// setActiveRequest is the body of POST /api/subscriptions/{id}/active.
type setActiveRequest struct {
	Active *bool `json:"isActive"`
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Subscriptions.List(r.Context(), ParseBoolParam(r, "active"))
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpList)
		return
	}
	OK(nonNil(subs)).Write(w)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := ParseDaysParam(r, core.DashboardWindowDays)
	subs, err := s.deps.Subscriptions.Upcoming(r.Context(), days)
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpList)
		return
	}
	OK(nonNil(subs)).Write(w)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.Get(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpRead)
		return
	}
	OK(sub).Write(w)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var in services.SubscriptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	sub, err := s.deps.Subscriptions.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpCreate)
		return
	}
	s.logSaved(r, log.OpCreate, sub)
	Created(sub).Header("Location", "/api/subscriptions/"+sub.ID).Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var in services.SubscriptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	sub, err := s.deps.Subscriptions.Update(r.Context(), pathID(r), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpUpdate)
		return
	}
	s.logSaved(r, log.OpUpdate, sub)
	OK(sub).Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if !ParseBoolParam(r, "confirm") {
		BadRequestError("Deleting a subscription cannot be undone; repeat with ?confirm=true").Write(w)
		return
	}
	if err := s.deps.Subscriptions.Delete(r.Context(), pathID(r)); err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpDelete)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.MarkAsPaid(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpMarkPaid)
		return
	}
	s.logSaved(r, log.OpMarkPaid, sub)
	OK(sub).Write(w)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.Active == nil {
		ve := core.NewValidationError()
		ve.Add("isActive", "Required")
		ValidationErrorResponse(ve).Write(w)
		return
	}

	sub, err := s.deps.Subscriptions.SetActive(r.Context(), pathID(r), *req.Active)
	if err != nil {
		s.fail(w, r, err, log.ComponentSubscription, log.OpUpdate)
		return
	}
	OK(sub).Write(w)
}

func (s *Server) logSaved(r *http.Request, op string, sub core.Subscription) {
	ctx := r.Context()
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogSubscriptionSaved(ctx, op, sub.ID, sub.Name, sub.Amount.Cents, sub.Amount.Currency)
}

// fail writes the response for err, logging only the failures that map
// to a 5xx.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		ctx := r.Context()
		fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"))
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, component, op, fields)
	}
	resp.Write(w)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
