package backend

import (
	"context"

	"subly/internal/adapters"
	"subly/internal/amqp"
	"subly/internal/remote"
	"subly/internal/services"
)

// CleanupFunc releases resources held by a Result.
type CleanupFunc func() error

// Result is the wired remote side of the application.
type Result struct {
	// Remote is nil when the mirror is disabled.
	Remote *remote.Store

	// Mirror receives every committed local change.
	Mirror services.Mirror

	// Queue is set when the mirror or notifications go through AMQP.
	Queue *amqp.Client

	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates the remote store and mirror transport from configuration.
type Factory interface {
	Create(ctx context.Context, config Config, identity adapters.Identity) (*Result, error)

	// CreateRemote builds only the remote store, for the mirror worker.
	CreateRemote(ctx context.Context, config Config) (*remote.Store, error)
}

// Config holds what the factory needs to build the remote side.
type Config struct {
	Remote    RemoteType
	Transport TransportType

	// AMQP
	AMQPURL               string
	AMQPExchange          string
	AMQPMirrorQueue       string
	AMQPNotificationQueue string
	NotifyViaQueue        bool

	// Firestore
	FirestoreProjectID  string
	FirestoreDatabaseID string

	// Object store
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// RemoteType is the remote document store the mirror writes to.
type RemoteType string

const (
	RemoteNone        RemoteType = "none"
	RemoteMemory      RemoteType = "memory"
	RemoteFirestore   RemoteType = "firestore"
	RemoteObjectStore RemoteType = "objectstore"
)

func (rt RemoteType) String() string {
	return string(rt)
}

func (rt RemoteType) IsValid() bool {
	switch rt {
	case RemoteNone, RemoteMemory, RemoteFirestore, RemoteObjectStore:
		return true
	default:
		return false
	}
}

// TransportType is how mirror writes reach the remote store.
type TransportType string

const (
	TransportDirect TransportType = "direct"
	TransportQueue  TransportType = "queue"
)

func (tt TransportType) IsValid() bool {
	return tt == TransportDirect || tt == TransportQueue
}
