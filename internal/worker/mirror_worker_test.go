package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/amqp"
	"subly/internal/core"
	"subly/internal/remote"
	"subly/internal/remote/memory"
)

func roundTrip(t *testing.T, msg *amqp.MirrorMessage) *amqp.MirrorMessage {
	t.Helper()
	data, err := msg.ToJSON()
	require.NoError(t, err)
	decoded, err := amqp.MirrorMessageFromJSON(data)
	require.NoError(t, err)
	return decoded
}

func TestMirrorWorker_Subscription(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	w := NewMirrorWorker(remote.NewStore(backend, nil), nil)

	sub := core.Subscription{
		ID:                 "s1",
		Name:               "Disney+",
		Category:           core.Streaming,
		Amount:             core.Money{Cents: 1399, Currency: "EUR"},
		Frequency:          core.Annual,
		StartDate:          core.NewDate(2023, 5, 1),
		NextBillingDate:    core.NewDate(2024, 5, 1),
		Active:             true,
		ReminderDaysBefore: 7,
	}
	msg := roundTrip(t, amqp.NewMirrorUpsert("u1", remote.CollectionSubscriptions, "s1", remote.SubscriptionDocument(sub)))
	require.NoError(t, w.HandleMirrorMessage(ctx, msg))

	doc, ok := backend.Get("u1", remote.CollectionSubscriptions, "s1")
	require.True(t, ok)
	back, err := remote.SubscriptionFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(1399), back.Amount.Cents)
	assert.Equal(t, "2024-05-01", back.NextBillingDate.String())

	require.NoError(t, w.HandleMirrorMessage(ctx, roundTrip(t, amqp.NewMirrorDelete("u1", remote.CollectionSubscriptions, "s1"))))
	assert.Zero(t, backend.Len("u1", remote.CollectionSubscriptions))
}

func TestMirrorWorker_PaymentMethod(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	w := NewMirrorWorker(remote.NewStore(backend, nil), nil)

	pm := core.PaymentMethod{ID: "pm1", Nickname: "Amex", Type: core.Amex, LastFourDigits: "1005"}
	msg := roundTrip(t, amqp.NewMirrorUpsert("u1", remote.CollectionPaymentMethods, "pm1", remote.PaymentMethodDocument(pm)))
	require.NoError(t, w.HandleMirrorMessage(ctx, msg))
	assert.Equal(t, 1, backend.Len("u1", remote.CollectionPaymentMethods))
}

func TestMirrorWorker_Malformed(t *testing.T) {
	ctx := context.Background()
	w := NewMirrorWorker(remote.NewStore(memory.New(), nil), nil)

	tests := []struct {
		name string
		msg  *amqp.MirrorMessage
	}{
		{"bad document", amqp.NewMirrorUpsert("u1", remote.CollectionSubscriptions, "s1", map[string]any{"id": "s1"})},
		{"id mismatch", amqp.NewMirrorUpsert("u1", remote.CollectionPaymentMethods, "pm2", map[string]any{"id": "pm1", "nickname": "x", "type": "VISA"})},
		{"unknown collection", amqp.NewMirrorDelete("u1", "invoices", "i1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.HandleMirrorMessage(ctx, tt.msg)
			assert.ErrorIs(t, err, amqp.ErrMalformed)
		})
	}
}

func TestMirrorWorker_RemoteFailureIsRetryable(t *testing.T) {
	backend := memory.New()
	backend.Err = errors.New("deadline exceeded")
	w := NewMirrorWorker(remote.NewStore(backend, nil), nil)

	err := w.HandleMirrorMessage(context.Background(), amqp.NewMirrorDelete("u1", remote.CollectionSubscriptions, "s1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, amqp.ErrMalformed)
}
