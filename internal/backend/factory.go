package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subly/internal/adapters"
	"subly/internal/amqp"
	"subly/internal/metrics"
	"subly/internal/remote"
	"subly/internal/remote/firestore"
	"subly/internal/remote/memory"
	"subly/internal/remote/objectstore"
	"subly/internal/services"
)

const shutdownWait = 10 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, metrics: m}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config, identity adapters.Identity) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Mirror: services.NoopMirror{}}
	var cleanups []CleanupFunc
	res.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	backend, err := f.createRemote(ctx, config)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		res.Remote = remote.NewStore(backend, f.logger)
	}

	if config.needsQueue() {
		bindings := []string{}
		if config.NotifyViaQueue {
			bindings = append(bindings, config.AMQPNotificationQueue)
		}
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPMirrorQueue, bindings...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		res.Queue = client
		cleanups = append(cleanups, client.Close)
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPMirrorQueue)
	}

	if res.Remote != nil {
		var mirror *adapters.AsyncMirror
		if config.Transport == TransportQueue {
			mirror = adapters.NewQueueMirror(identity, res.Queue, f.metrics, f.logger)
		} else {
			mirror = adapters.NewAsyncMirror(identity, res.Remote, f.metrics, f.logger)
		}
		res.Mirror = mirror
		cleanups = append(cleanups, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()
			return mirror.Wait(ctx)
		})
	}

	f.logger.Info("Initialized remote mirror",
		"remote", config.Remote,
		"transport", config.Transport,
		"amqp_enabled", res.Queue != nil)

	return res, nil
}

// CreateRemote builds only the remote store, for the mirror worker.
func (f *DefaultFactory) CreateRemote(ctx context.Context, config Config) (*remote.Store, error) {
	backend, err := f.createRemote(ctx, config)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, fmt.Errorf("remote backend %q cannot receive mirror writes", config.Remote)
	}
	return remote.NewStore(backend, f.logger), nil
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (remote.Backend, error) {
	switch config.Remote {
	case RemoteNone:
		f.logger.Info("Remote mirror disabled")
		return nil, nil
	case RemoteMemory:
		f.logger.Info("Using in-memory remote store")
		return memory.New(), nil
	case RemoteFirestore:
		client, err := firestore.New(ctx, config.FirestoreProjectID, config.FirestoreDatabaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
		}
		f.logger.Info("Initialized Firestore remote store",
			"project", config.FirestoreProjectID,
			"database", config.FirestoreDatabaseID)
		return client, nil
	case RemoteObjectStore:
		store, err := objectstore.New(ctx, objectstore.Options{
			Bucket:    config.S3Bucket,
			Endpoint:  config.S3Endpoint,
			Region:    config.S3Region,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object store: %w", err)
		}
		f.logger.Info("Initialized object store remote",
			"bucket", config.S3Bucket,
			"endpoint", config.S3Endpoint)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
}
