// Package adapters bridges the services' Mirror port to the remote
// document store, either directly or through the message queue.
package adapters

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"subly/internal/core"
	"subly/internal/metrics"
	"subly/internal/remote"
	"subly/internal/services"
)

// Identity reports the signed-in user; empty when signed out.
type Identity interface {
	UID() string
}

// IdentityFunc adapts a function to Identity. It lets the mirror be built
// before the session that will own the identity.
type IdentityFunc func() string

func (f IdentityFunc) UID() string { return f() }

// Writer is the remote side a mirror write lands on.
type Writer interface {
	remote.SubscriptionWriter
	remote.PaymentMethodWriter
}

const defaultWriteTimeout = 30 * time.Second

// AsyncMirror applies mirror writes off the caller's goroutine, one at a
// time in submission order, so a delete never lands before the save that
// preceded it. Callers never wait and never see failures; those are logged
// and counted.
type AsyncMirror struct {
	identity Identity
	writer   Writer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration

	mu       sync.Mutex
	queue    []mirrorJob
	draining bool
	pending  sync.WaitGroup
}

type mirrorJob struct {
	ctx        context.Context
	collection string
	op         string
	id         string
	uid        string
	write      func(context.Context, string) error
}

var _ services.Mirror = (*AsyncMirror)(nil)

func NewAsyncMirror(identity Identity, writer Writer, m *metrics.Metrics, logger *slog.Logger) *AsyncMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncMirror{
		identity: identity,
		writer:   writer,
		metrics:  m,
		logger:   logger.With("component", "mirror"),
		timeout:  defaultWriteTimeout,
	}
}

func (m *AsyncMirror) SubscriptionSaved(ctx context.Context, s core.Subscription) {
	m.dispatch(ctx, remote.CollectionSubscriptions, "upsert", s.ID, func(ctx context.Context, uid string) error {
		return m.writer.UpsertSubscription(ctx, uid, s)
	})
}

func (m *AsyncMirror) SubscriptionDeleted(ctx context.Context, id string) {
	m.dispatch(ctx, remote.CollectionSubscriptions, "delete", id, func(ctx context.Context, uid string) error {
		return m.writer.DeleteSubscription(ctx, uid, id)
	})
}

func (m *AsyncMirror) PaymentMethodSaved(ctx context.Context, pm core.PaymentMethod) {
	m.dispatch(ctx, remote.CollectionPaymentMethods, "upsert", pm.ID, func(ctx context.Context, uid string) error {
		return m.writer.UpsertPaymentMethod(ctx, uid, pm)
	})
}

func (m *AsyncMirror) PaymentMethodDeleted(ctx context.Context, id string) {
	m.dispatch(ctx, remote.CollectionPaymentMethods, "delete", id, func(ctx context.Context, uid string) error {
		return m.writer.DeletePaymentMethod(ctx, uid, id)
	})
}

// dispatch captures the uid at call time so a later sign-out does not
// redirect a queued write.
func (m *AsyncMirror) dispatch(ctx context.Context, collection, op, id string, write func(context.Context, string) error) {
	uid := ""
	if m.identity != nil {
		uid = m.identity.UID()
	}
	if uid == "" {
		m.logger.DebugContext(ctx, "No signed-in identity, skipping mirror write",
			"collection", collection,
			"op", op,
			"id", id)
		return
	}

	job := mirrorJob{
		// The request context ends when the handler returns.
		ctx:        context.WithoutCancel(ctx),
		collection: collection,
		op:         op,
		id:         id,
		uid:        uid,
		write:      write,
	}

	m.pending.Add(1)
	m.mu.Lock()
	m.queue = append(m.queue, job)
	start := !m.draining
	m.draining = true
	m.mu.Unlock()

	if start {
		go m.drain()
	}
}

// drain applies queued jobs until the queue is empty. At most one drain
// runs at a time.
func (m *AsyncMirror) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		job := m.queue[0]
		m.queue[0] = mirrorJob{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.apply(job)
		m.pending.Done()
	}
}

func (m *AsyncMirror) apply(job mirrorJob) {
	ctx, cancel := context.WithTimeout(job.ctx, m.timeout)
	defer cancel()

	err := job.write(ctx, job.uid)
	m.metrics.MirrorWrite(job.collection, job.op, err)
	if err != nil {
		m.logger.WarnContext(ctx, "Mirror write failed",
			"collection", job.collection,
			"op", job.op,
			"id", job.id,
			"uid", job.uid,
			"error", err)
		return
	}
	m.logger.DebugContext(ctx, "Mirror write completed",
		"collection", job.collection,
		"op", job.op,
		"id", job.id)
}

// Wait blocks until every dispatched write has finished or ctx is done.
func (m *AsyncMirror) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
