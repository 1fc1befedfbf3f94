package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/adapters"
	"subly/internal/config"
	"subly/internal/core"
	"subly/internal/log"
	"subly/internal/remote"
	"subly/internal/services"
)

type staticIdentity string

func (s staticIdentity) UID() string { return string(s) }

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg := &config.Config{
		RemoteBackend:      config.RemoteFirestore,
		MirrorTransport:    config.MirrorDirect,
		FirestoreProjectID: "demo",
	}
	bc, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, RemoteFirestore, bc.Remote)
	assert.Equal(t, "demo", bc.FirestoreProjectID)

	cfg.RemoteBackend = "dropbox"
	_, err = FromAppConfig(cfg)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory direct", Config{Remote: RemoteMemory, Transport: TransportDirect}, ""},
		{"none with queue needs no broker", Config{Remote: RemoteNone, Transport: TransportQueue}, ""},
		{"firestore without project", Config{Remote: RemoteFirestore, Transport: TransportDirect}, "project ID"},
		{"objectstore without bucket", Config{Remote: RemoteObjectStore, Transport: TransportDirect}, "bucket"},
		{"queue without broker", Config{Remote: RemoteMemory, Transport: TransportQueue}, "AMQP URL"},
		{"notify without broker", Config{Remote: RemoteNone, Transport: TransportDirect, NotifyViaQueue: true}, "notifications"},
		{"bad transport", Config{Remote: RemoteMemory, Transport: "carrier-pigeon"}, "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFactory_MemoryDirect(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(log.Discard().Slog(), nil)

	res, err := f.Create(ctx, Config{Remote: RemoteMemory, Transport: TransportDirect}, staticIdentity("u1"))
	require.NoError(t, err)
	require.NotNil(t, res.Remote)
	assert.Nil(t, res.Queue)
	require.IsType(t, &adapters.AsyncMirror{}, res.Mirror)

	res.Mirror.PaymentMethodSaved(ctx, core.PaymentMethod{ID: "pm1", Nickname: "Cash", Type: core.Cash})
	require.NoError(t, res.Close(), "close waits for pending writes")

	pms, err := res.Remote.FetchPaymentMethods(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pms, 1)
}

func TestFactory_NoRemote(t *testing.T) {
	f := NewFactory(log.Discard().Slog(), nil)

	res, err := f.Create(context.Background(), Config{Remote: RemoteNone, Transport: TransportDirect}, staticIdentity("u1"))
	require.NoError(t, err)
	assert.Nil(t, res.Remote)
	assert.Equal(t, services.NoopMirror{}, res.Mirror)
	assert.NoError(t, res.Close())

	_, err = f.CreateRemote(context.Background(), Config{Remote: RemoteNone})
	assert.Error(t, err)
}

func TestFactory_CreateRemote(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	store, err := NewFactory(nil, nil).CreateRemote(ctx, Config{Remote: RemoteMemory, Transport: TransportDirect})
	require.NoError(t, err)
	require.NoError(t, store.DeleteSubscription(ctx, "u1", "missing"))

	var _ remote.Fetcher = store
}
