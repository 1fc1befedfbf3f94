package http

import (
	"net/http"

	"subly/internal/log"
	"subly/internal/services"
)

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	usage, err := s.deps.PaymentMethods.List(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentPayment, log.OpList)
		return
	}
	OK(nonNil(usage)).Write(w)
}

func (s *Server) handleGetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	pm, err := s.deps.PaymentMethods.Get(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err, log.ComponentPayment, log.OpRead)
		return
	}
	OK(pm).Write(w)
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var in services.PaymentMethodInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	pm, err := s.deps.PaymentMethods.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentPayment, log.OpCreate)
		return
	}
	Created(pm).Header("Location", "/api/payment-methods/"+pm.ID).Write(w)
}

func (s *Server) handleUpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var in services.PaymentMethodInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	pm, err := s.deps.PaymentMethods.Update(r.Context(), pathID(r), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentPayment, log.OpUpdate)
		return
	}
	OK(pm).Write(w)
}

// handleDeletePaymentMethod answers 409 while subscriptions still use the method.
func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.PaymentMethods.Delete(r.Context(), pathID(r)); err != nil {
		s.fail(w, r, err, log.ComponentPayment, log.OpDelete)
		return
	}
	NoContent().Write(w)
}
