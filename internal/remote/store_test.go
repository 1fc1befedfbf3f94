package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/core"
	"subly/internal/remote"
	"subly/internal/remote/memory"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := remote.NewStore(backend, nil)

	sub := core.Subscription{
		ID:                 "s1",
		Name:               "Spotify",
		Category:           core.Streaming,
		Amount:             core.Money{Cents: 1099, Currency: "USD"},
		Frequency:          core.Monthly,
		StartDate:          core.NewDate(2024, 3, 1),
		NextBillingDate:    core.NewDate(2024, 4, 1),
		Active:             true,
		ReminderDaysBefore: 2,
	}
	require.NoError(t, store.UpsertSubscription(ctx, "u1", sub))
	require.NoError(t, store.UpsertPaymentMethod(ctx, "u1", core.PaymentMethod{ID: "pm1", Nickname: "Visa", Type: core.Visa, Icon: "x"}))

	doc, ok := backend.Get("u1", remote.CollectionSubscriptions, "s1")
	require.True(t, ok)
	assert.False(t, doc.UpdatedAt().IsZero(), "backend assigns updatedAt")

	subs, err := store.FetchSubscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub, subs[0])

	pms, err := store.FetchPaymentMethods(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pms, 1)
	assert.Empty(t, pms[0].Icon)

	other, err := store.FetchSubscriptions(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other, "identities are isolated")

	require.NoError(t, store.DeleteSubscription(ctx, "u1", "s1"))
	assert.Equal(t, 0, backend.Len("u1", remote.CollectionSubscriptions))
}

func TestStoreSkipsMalformedDocuments(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := remote.NewStore(backend, nil)

	require.NoError(t, backend.PutDocument(ctx, "u1", remote.CollectionPaymentMethods, "bad", remote.Document{"id": "bad"}))
	require.NoError(t, store.UpsertPaymentMethod(ctx, "u1", core.PaymentMethod{ID: "ok", Nickname: "Cash", Type: core.Cash}))

	pms, err := store.FetchPaymentMethods(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pms, 1)
	assert.Equal(t, "ok", pms[0].ID)
}

func TestStoreSkipsOutOfRangeSubscriptions(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := remote.NewStore(backend, nil)

	good := core.Subscription{
		ID:                 "good",
		Name:               "Cloud",
		Category:           core.Software,
		Amount:             core.Money{Cents: 299, Currency: "USD"},
		Frequency:          core.Monthly,
		StartDate:          core.NewDate(2024, 1, 1),
		NextBillingDate:    core.NewDate(2024, 2, 1),
		Active:             true,
		ReminderDaysBefore: 30,
	}
	require.NoError(t, store.UpsertSubscription(ctx, "u1", good))

	bad := remote.SubscriptionDocument(good)
	bad["id"] = "bad"
	bad["reminderDaysBefore"] = int64(45)
	require.NoError(t, backend.PutDocument(ctx, "u1", remote.CollectionSubscriptions, "bad", bad))

	subs, err := store.FetchSubscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "good", subs[0].ID)
}

func TestStorePropagatesBackendErrors(t *testing.T) {
	backend := memory.New()
	backend.Err = errors.New("unavailable")
	store := remote.NewStore(backend, nil)

	_, err := store.FetchSubscriptions(context.Background(), "u1")
	assert.ErrorIs(t, err, backend.Err)
}
