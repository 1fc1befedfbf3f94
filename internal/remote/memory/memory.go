// Package memory is an in-process remote backend for tests and offline
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"subly/internal/remote"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]remote.Document // collection path -> id -> doc
	now  func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

var _ remote.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		docs: make(map[string]map[string]remote.Document),
		now:  time.Now,
	}
}

func (s *Store) PutDocument(ctx context.Context, uid, collection, id string, doc remote.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	path := remote.CollectionPath(uid, collection)
	if s.docs[path] == nil {
		s.docs[path] = make(map[string]remote.Document)
	}
	stored := make(remote.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[remote.FieldUpdatedAt] = s.now().UTC()
	s.docs[path][id] = stored
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, uid, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.docs[remote.CollectionPath(uid, collection)], id)
	return nil
}

// ListDocuments returns copies ordered by id.
func (s *Store) ListDocuments(ctx context.Context, uid, collection string) ([]remote.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	coll := s.docs[remote.CollectionPath(uid, collection)]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]remote.Document, 0, len(ids))
	for _, id := range ids {
		doc := make(remote.Document, len(coll[id]))
		for k, v := range coll[id] {
			doc[k] = v
		}
		out = append(out, doc)
	}
	return out, nil
}

// Get returns one stored document.
func (s *Store) Get(uid, collection, id string) (remote.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[remote.CollectionPath(uid, collection)][id]
	return doc, ok
}

// Len counts documents in one collection.
func (s *Store) Len(uid, collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[remote.CollectionPath(uid, collection)])
}
