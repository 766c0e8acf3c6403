// Package optimistic applies list edits locally before the server confirms them
// and rolls them back when it does not.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// TempPrefix marks identifiers assigned locally before the server answers.
const TempPrefix = "tmp-"

// ErrUnknownID is returned by Remove for an id that is not in the list.
var ErrUnknownID = errors.New("optimistic: unknown id")

// TempID returns a new session-unique temporary identifier.
func TempID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("temp id: %w", err)
	}
	return TempPrefix + u.String(), nil
}

// IsTemp reports whether id was assigned by TempID.
func IsTemp(id string) bool { return strings.HasPrefix(id, TempPrefix) }

// Accessor reads and writes the identifier of a T.
type Accessor[T any] struct {
	ID     func(T) string
	WithID func(T, string) T
}

// List is an ordered collection edited optimistically. The lock is never held
// across a server call.
type List[T any] struct {
	mu    sync.Mutex
	items []T
	acc   Accessor[T]
	log   *zap.Logger
}

// New returns a list seeded with items.
func New[T any](acc Accessor[T], items []T, log *zap.Logger) *List[T] {
	if log == nil {
		log = zap.NewNop()
	}
	l := &List[T]{acc: acc, log: log}
	l.Set(items)
	return l
}

// Set replaces the contents, typically with a fresh server read.
func (l *List[T]) Set(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)
	l.mu.Lock()
	l.items = cp
	l.mu.Unlock()
}

// Snapshot returns a copy of the current contents.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len reports the number of entries, pending ones included.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Add appends item under a temporary id and calls create. On success the entry is
// replaced in place by the server's version; on failure it is removed and the error
// returned. There is no retry.
func (l *List[T]) Add(ctx context.Context, item T, create func(context.Context, T) (T, error)) (T, error) {
	var zero T
	tmp, err := TempID()
	if err != nil {
		return zero, err
	}
	item = l.acc.WithID(item, tmp)

	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()

	created, err := create(ctx, item)

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(tmp)
	if err != nil {
		if i >= 0 {
			l.items = slices.Delete(l.items, i, i+1)
		}
		l.log.Info("optimistic add rolled back", zap.String("tmp", tmp), zap.Error(err))
		return zero, err
	}
	switch {
	case i >= 0:
		l.items[i] = created
	case l.index(l.acc.ID(created)) < 0:
		// Set replaced the list while create was in flight.
		l.items = append(l.items, created)
	}
	return created, nil
}

// Remove takes id out immediately and calls del. If del fails the entry is put
// back at its original position.
func (l *List[T]) Remove(ctx context.Context, id string, del func(context.Context, string) error) error {
	l.mu.Lock()
	i := l.index(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	removed := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)
	l.mu.Unlock()

	err := del(ctx, id)
	if err == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i > len(l.items) {
		i = len(l.items)
	}
	l.items = slices.Insert(l.items, i, removed)
	l.log.Info("optimistic remove rolled back", zap.String("id", id), zap.Error(err))
	return err
}

func (l *List[T]) index(id string) int {
	for i, it := range l.items {
		if l.acc.ID(it) == id {
			return i
		}
	}
	return -1
}
