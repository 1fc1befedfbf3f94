package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"subly/internal/core"
)

// Topic identifies a table whose changes observers can watch.
type Topic uint8

const (
	TopicSubscriptions Topic = 1 << iota
	TopicPaymentMethods
	TopicSettings

	TopicAll = TopicSubscriptions | TopicPaymentMethods | TopicSettings
)

type watcher struct {
	topics Topic
	signal chan struct{}
}

// changeFeed fans committed-mutation signals out to any number of watchers.
// Each watcher holds at most one pending signal, so bursts of writes
// coalesce into a single re-query.
type changeFeed struct {
	mu       sync.Mutex
	watchers map[uint64]*watcher
	nextID   uint64
	version  atomic.Uint64
}

func newChangeFeed() *changeFeed {
	return &changeFeed{watchers: make(map[uint64]*watcher)}
}

func (f *changeFeed) publish(t Topic) {
	f.version.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.watchers {
		if w.topics&t == 0 {
			continue
		}
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
}

func (f *changeFeed) watch(topics Topic) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	w := &watcher{topics: topics, signal: make(chan struct{}, 1)}
	f.watchers[id] = w

	var once sync.Once
	return w.signal, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}
}

func (f *changeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// observe emits load's result now and again after every change to topics,
// until ctx is done. A load returning core.ErrNotFound ends the stream;
// other load errors are logged and the previous snapshot stands.
func observe[T any](ctx context.Context, f *changeFeed, topics Topic, load func(context.Context) (T, error)) (<-chan T, error) {
	signal, cancel := f.watch(topics)

	first, err := load(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan T, 1)
	out <- first

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}

			snapshot, err := load(ctx)
			if errors.Is(err, core.ErrNotFound) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "Observer reload failed", "error", err)
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
