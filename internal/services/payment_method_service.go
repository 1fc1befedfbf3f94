package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"subly/internal/core"
)

type PaymentMethodService struct {
	repo   PaymentMethodRepository
	mirror Mirror
	newID  func() string
}

func NewPaymentMethodService(repo PaymentMethodRepository, mirror Mirror) *PaymentMethodService {
	if mirror == nil {
		mirror = NoopMirror{}
	}
	return &PaymentMethodService{repo: repo, mirror: mirror, newID: uuid.NewString}
}

func (s *PaymentMethodService) Create(ctx context.Context, in PaymentMethodInput) (core.PaymentMethod, error) {
	pm := core.PaymentMethod{ID: s.newID()}
	in.apply(&pm)
	if err := pm.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}

	if err := s.repo.InsertPaymentMethod(ctx, pm); err != nil {
		return core.PaymentMethod{}, fmt.Errorf("save payment method: %w", err)
	}
	slog.InfoContext(ctx, "Payment method created", "id", pm.ID, "type", pm.Type)

	s.mirror.PaymentMethodSaved(ctx, pm)
	return pm, nil
}

func (s *PaymentMethodService) Update(ctx context.Context, id string, in PaymentMethodInput) (core.PaymentMethod, error) {
	pm, err := s.repo.GetPaymentMethod(ctx, id)
	if err != nil {
		return core.PaymentMethod{}, err
	}
	in.apply(&pm)
	if err := pm.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}

	if err := s.repo.UpdatePaymentMethod(ctx, pm); err != nil {
		return core.PaymentMethod{}, fmt.Errorf("update payment method: %w", err)
	}
	s.mirror.PaymentMethodSaved(ctx, pm)
	return pm, nil
}

// Delete refuses with *core.InUseError while any subscription, active or
// not, references the payment method. The count and the delete are not
// atomic; a subscription attached in between is left dangling.
func (s *PaymentMethodService) Delete(ctx context.Context, id string) error {
	n, err := s.repo.CountSubscriptionsForPaymentMethod(ctx, id)
	if err != nil {
		return fmt.Errorf("count usage: %w", err)
	}
	if n > 0 {
		return &core.InUseError{Count: n}
	}

	if err := s.repo.DeletePaymentMethod(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Payment method deleted", "id", id)
	s.mirror.PaymentMethodDeleted(ctx, id)
	return nil
}

func (s *PaymentMethodService) Get(ctx context.Context, id string) (core.PaymentMethod, error) {
	return s.repo.GetPaymentMethod(ctx, id)
}

// List returns payment methods with their subscription counts.
func (s *PaymentMethodService) List(ctx context.Context) ([]core.PaymentMethodUsage, error) {
	return s.repo.ListPaymentMethodUsage(ctx)
}

func (s *PaymentMethodService) Observe(ctx context.Context) (<-chan []core.PaymentMethodUsage, error) {
	return s.repo.ObservePaymentMethods(ctx)
}
