// Package query caches read results per key with single-flight fetching and
// explicit, caller-driven invalidation.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of one cache entry.
type Status int

const (
	Idle Status = iota
	Loading
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Key identifies one read: an operation plus its parameters.
type Key string

// NewKey derives a deterministic key. Parameters are rendered with %v, so use
// values whose formatting is stable (strings, numbers, plain structs).
func NewKey(op string, params ...any) Key {
	if len(params) == 0 {
		return Key(op)
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return Key(op + "/" + strings.Join(parts, "/"))
}

// Snapshot is a point-in-time copy of an entry.
type Snapshot struct {
	Key       Key
	Data      any
	Err       error
	Status    Status
	UpdatedAt time.Time
}

type entry struct {
	data      any
	err       error
	status    Status
	stale     bool
	updatedAt time.Time
	fetch     func(context.Context) (any, error)

	// gen advances on every invalidation and forced run; settled is the generation
	// of the held result. The entry is fresh only when both match.
	gen     uint64
	settled uint64
	// running is closed when the most recently started fetch finishes.
	running chan struct{}
}

type subscriber struct {
	id     int
	key    Key
	prefix bool
	fn     func(Snapshot)
}

// Cache holds entries for any number of keys. The zero value is not usable; use New.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    []subscriber
	nextSub int
	epoch   uint64 // advanced by Reset

	group singleflight.Group
	log   *zap.Logger
	now   func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.log = l } }

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]*entry),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ErrType is returned when a key holds data of a different type than requested.
var ErrType = errors.New("query: cached value has unexpected type")

// Query returns the cached value for key or fetches it. Concurrent callers for the
// same key share one fetch. The fetch is not cancelled when ctx is; ctx only bounds
// how long this caller waits.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(key); ok {
		return cast[T](v)
	}
	return run[T](ctx, c, key, wrap(fetch), false)
}

// Refetch bypasses the cache and re-executes fetch. A fetch already in flight for key
// is waited for, never adopted; the entry ends up holding this call's outcome.
func Refetch[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	return run[T](ctx, c, key, wrap(fetch), true)
}

// Mutate executes fn exactly once. It never touches cached entries; callers
// invalidate or refetch affected keys themselves.
func Mutate[T any](ctx context.Context, c *Cache, op string, fn func(context.Context) (T, error)) (T, error) {
	start := c.now()
	v, err := fn(ctx)
	c.log.Debug("mutation",
		zap.String("op", op),
		zap.Duration("dur", c.now().Sub(start)),
		zap.Error(err),
	)
	return v, err
}

func wrap[T any](fetch func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) { return fetch(ctx) }
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrType, v)
	}
	return t, nil
}

func run[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (any, error), force bool) (T, error) {
	epoch, gen := c.generation(key, force)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s#%d.%d", key, epoch, gen), func() (any, error) {
		if !force {
			if v, ok := c.fresh(key); ok {
				return v, nil
			}
		}
		done, prev, ok := c.begin(key, epoch, fetch)
		if !ok {
			return fetch(detached)
		}
		defer close(done)
		if prev != nil {
			<-prev
		}
		start := c.now()
		v, err := fetch(detached)
		c.settle(key, epoch, gen, done, v, err, c.now().Sub(start))
		return v, err
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return cast[T](res.Val)
	}
}

// generation returns the cache epoch and the generation a run for key belongs to.
// A forced run opens a new generation so it never joins an earlier fetch.
func (c *Cache) generation(key Key, force bool) (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !force {
		if !ok {
			return c.epoch, 0
		}
		return c.epoch, e.gen
	}
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.gen++
	return c.epoch, e.gen
}

func (c *Cache) fresh(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stale || e.status != Success || e.settled != e.gen {
		return nil, false
	}
	return e.data, true
}

// begin registers a starting fetch and returns its completion channel along with the
// one of the fetch it must wait for. ok is false when the cache was reset meanwhile.
func (c *Cache) begin(key Key, epoch uint64, fetch func(context.Context) (any, error)) (done, prev chan struct{}, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil, nil, false
	}
	e, found := c.entries[key]
	if !found {
		e = &entry{}
		c.entries[key] = e
	}
	done, prev = make(chan struct{}), e.running
	e.running = done
	e.status = Loading
	e.fetch = fetch
	return done, prev, true
}

func (c *Cache) settle(key Key, epoch, gen uint64, done chan struct{}, v any, err error, dur time.Duration) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.epoch != epoch || gen < e.settled {
		// Reset or a newer result landed while this fetch was in flight.
		c.mu.Unlock()
		return
	}
	e.settled = gen
	e.stale = gen != e.gen
	e.updatedAt = c.now()
	if e.running != done {
		// Superseded by a fetch that is still running: keep Loading, refresh data.
		if err == nil {
			e.data = v
		}
		c.mu.Unlock()
		return
	}
	e.running = nil
	if err != nil {
		e.status, e.err = Error, err
	} else {
		e.status, e.err, e.data = Success, nil, v
	}
	snap := e.snapshot(key)
	subs := c.matching(key)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("query failed", zap.String("key", string(key)), zap.Duration("dur", dur), zap.Error(err))
	} else {
		c.log.Debug("query settled", zap.String("key", string(key)), zap.Duration("dur", dur))
	}
	for _, fn := range subs {
		fn(snap)
	}
}

func (e *entry) snapshot(key Key) Snapshot {
	return Snapshot{Key: key, Data: e.data, Err: e.err, Status: e.status, UpdatedAt: e.updatedAt}
}

func (c *Cache) matching(key Key) []func(Snapshot) {
	var out []func(Snapshot)
	for _, s := range c.subs {
		if s.key == key || (s.prefix && strings.HasPrefix(string(key), string(s.key))) {
			out = append(out, s.fn)
		}
	}
	return out
}

// Snapshot returns the current entry for key.
func (c *Cache) Snapshot(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: Idle}, false
	}
	return e.snapshot(key), true
}

// State reports the status of key; unknown keys are Idle.
func (c *Cache) State(key Key) Status {
	s, _ := c.Snapshot(key)
	return s.Status
}

// Invalidate marks keys stale so the next Query fetches again. Data stays visible.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			e.stale = true
			e.gen++
		}
	}
}

// InvalidatePrefix marks stale every key starting with prefix and returns them.
func (c *Cache) InvalidatePrefix(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Key
	for k, e := range c.entries {
		if strings.HasPrefix(string(k), string(prefix)) {
			e.stale = true
			e.gen++
			out = append(out, k)
		}
	}
	return out
}

// RefetchKeys re-runs the last fetcher of each known key. Keys never fetched are skipped.
func (c *Cache) RefetchKeys(ctx context.Context, keys ...Key) error {
	var errs []error
	for _, k := range keys {
		c.mu.Lock()
		e, ok := c.entries[k]
		var fetch func(context.Context) (any, error)
		if ok {
			fetch = e.fetch
		}
		c.mu.Unlock()
		if fetch == nil {
			continue
		}
		if _, err := run[any](ctx, c, k, fetch, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe calls fn after every settled fetch of key. The returned func unsubscribes.
func (c *Cache) Subscribe(key Key, fn func(Snapshot)) func() {
	return c.subscribe(subscriber{key: key, fn: fn})
}

// SubscribePrefix is Subscribe for every key starting with prefix.
func (c *Cache) SubscribePrefix(prefix Key, fn func(Snapshot)) func() {
	return c.subscribe(subscriber{key: prefix, prefix: true, fn: fn})
}

func (c *Cache) subscribe(s subscriber) func() {
	c.mu.Lock()
	c.nextSub++
	s.id = c.nextSub
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.subs {
			if c.subs[i].id == s.id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Reset drops every entry. Fetches still in flight are detached from the cache: their
// results are discarded and later reads never join them. Subscriptions survive.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()
}
