// Package state holds the denormalized content summary shared across the dashboard.
package state

import (
	"sync"

	"github.com/and161185/mediadesk/internal/model"
)

// Collection is the last page synced for one kind.
type Collection struct {
	Items []model.ContentItem
	Meta  model.Meta
}

// Store keeps one collection per content kind. Each kind has a single writer: the
// post-fetch hook of the read that produced it.
type Store struct {
	mu    sync.RWMutex
	kinds map[model.Kind]Collection
}

func New() *Store {
	return &Store{kinds: make(map[model.Kind]Collection)}
}

// SetCollection replaces the whole collection for kind.
func (s *Store) SetCollection(kind model.Kind, p model.Page[model.ContentItem]) {
	items := make([]model.ContentItem, len(p.Items))
	copy(items, p.Items)
	s.mu.Lock()
	s.kinds[kind] = Collection{Items: items, Meta: p.Meta}
	s.mu.Unlock()
}

// Collection returns a copy of the synced collection for kind.
func (s *Store) Collection(kind model.Kind) (Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.kinds[kind]
	if !ok {
		return Collection{}, false
	}
	items := make([]model.ContentItem, len(c.Items))
	copy(items, c.Items)
	return Collection{Items: items, Meta: c.Meta}, true
}

// Reset clears every kind.
func (s *Store) Reset() {
	s.mu.Lock()
	s.kinds = make(map[model.Kind]Collection)
	s.mu.Unlock()
}

// Totals reports the server-side total per kind for kinds that have been synced.
func (s *Store) Totals() map[model.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Kind]int, len(s.kinds))
	for k, c := range s.kinds {
		out[k] = c.Meta.Total
	}
	return out
}
