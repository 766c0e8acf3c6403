package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counter struct {
	calls atomic.Int32
}

func (c *counter) fetch(v []string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		c.calls.Add(1)
		return v, nil
	}
}

func TestNewKey(t *testing.T) {
	t.Parallel()
	type params struct{ Page, Limit int }
	require.Equal(t, Key("blogs"), NewKey("blogs"))
	require.Equal(t, NewKey("blogs", params{1, 10}), NewKey("blogs", params{1, 10}))
	require.NotEqual(t, NewKey("blogs", params{1, 10}), NewKey("blogs", params{2, 10}))
	require.Equal(t, Key("blogs/1/x"), NewKey("blogs", 1, "x"))
}

func TestQuery_IdempotentCaching(t *testing.T) {
	t.Parallel()
	c := New()
	var n counter
	ctx := context.Background()
	key := NewKey("blogs", 1)

	a, err := Query(ctx, c, key, n.fetch([]string{"a", "b"}))
	require.NoError(t, err)
	b, err := Query(ctx, c, key, n.fetch([]string{"other"}))
	require.NoError(t, err)

	require.Equal(t, int32(1), n.calls.Load())
	require.Equal(t, a, b)
	require.Equal(t, Success, c.State(key))
}

func TestQuery_SingleInFlight(t *testing.T) {
	t.Parallel()
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "page", nil
	}
	key := NewKey("videos", 1)

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = Query(context.Background(), c, key, fetch)
	}()
	<-started
	require.Equal(t, Loading, c.State(key))
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = Query(context.Background(), c, key, fetch)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []string{"page", "page"}, results)
}

func TestRefetch_ReplacesEntry(t *testing.T) {
	t.Parallel()
	c := New()
	var n counter
	ctx := context.Background()
	key := NewKey("podcasts")

	_, err := Query(ctx, c, key, n.fetch([]string{"old"}))
	require.NoError(t, err)
	v, err := Refetch(ctx, c, key, n.fetch([]string{"new"}))
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, v)
	require.Equal(t, int32(2), n.calls.Load())

	s, ok := c.Snapshot(key)
	require.True(t, ok)
	require.Equal(t, []string{"new"}, s.Data)
}

func TestQuery_ErrorKeepsStaleData(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	key := NewKey("publications")
	boom := errors.New("boom")

	_, err := Query(ctx, c, key, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	_, err = Refetch(ctx, c, key, func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	s, _ := c.Snapshot(key)
	require.Equal(t, Error, s.Status)
	require.ErrorIs(t, s.Err, boom)
	require.Equal(t, 7, s.Data)

	// An errored entry is not fresh; the next read fetches again.
	v, err := Query(ctx, c, key, func(context.Context) (int, error) { return 8, nil })
	require.NoError(t, err)
	require.Equal(t, 8, v)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()
	c := New()
	var n counter
	ctx := context.Background()
	k1, k2, other := NewKey("blogs", 1), NewKey("blogs", 2), NewKey("videos", 1)
	for _, k := range []Key{k1, k2, other} {
		_, err := Query(ctx, c, k, n.fetch(nil))
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), n.calls.Load())

	c.Invalidate(k1)
	_, _ = Query(ctx, c, k1, n.fetch(nil))
	require.Equal(t, int32(4), n.calls.Load())

	require.ElementsMatch(t, []Key{k1, k2}, c.InvalidatePrefix("blogs"))
	_, _ = Query(ctx, c, k2, n.fetch(nil))
	_, _ = Query(ctx, c, other, n.fetch(nil))
	require.Equal(t, int32(5), n.calls.Load())
}

func TestRefetchKeys_UsesLastFetcher(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	var version atomic.Int32
	fetch := func(context.Context) (int32, error) { return version.Add(1), nil }
	key := NewKey("blogs", 1)

	_, err := Query(ctx, c, key, fetch)
	require.NoError(t, err)
	require.NoError(t, c.RefetchKeys(ctx, key, NewKey("never-read")))

	s, _ := c.Snapshot(key)
	require.Equal(t, int32(2), s.Data)
}

func TestQuery_CallerCancelDoesNotAbortFetch(t *testing.T) {
	t.Parallel()
	c := New()
	release := make(chan struct{})
	var fetchErr atomic.Value
	fetch := func(ctx context.Context) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
		}
		return "done", nil
	}
	key := NewKey("slow")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Query(ctx, c, key, fetch)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.State(key) == Success }, time.Second, 5*time.Millisecond)
	require.Nil(t, fetchErr.Load())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	var got []Snapshot
	unsub := c.SubscribePrefix("blogs", func(s Snapshot) { got = append(got, s) })
	exact := 0
	c.Subscribe(NewKey("videos"), func(Snapshot) { exact++ })

	_, _ = Query(ctx, c, NewKey("blogs", 1), func(context.Context) (int, error) { return 1, nil })
	_, _ = Query(ctx, c, NewKey("videos"), func(context.Context) (int, error) { return 2, nil })
	unsub()
	_, _ = Refetch(ctx, c, NewKey("blogs", 1), func(context.Context) (int, error) { return 3, nil })

	require.Len(t, got, 1)
	require.Equal(t, NewKey("blogs", 1), got[0].Key)
	require.Equal(t, Success, got[0].Status)
	require.Equal(t, 1, exact)
}

func TestMutate_RunsOnceAndLeavesCache(t *testing.T) {
	t.Parallel()
	c := New()
	var n counter
	ctx := context.Background()
	key := NewKey("blogs", 1)
	_, _ = Query(ctx, c, key, n.fetch([]string{"x"}))

	runs := 0
	_, err := Mutate(ctx, c, "delete", func(context.Context) (struct{}, error) {
		runs++
		return struct{}{}, errors.New("Title is required")
	})
	require.EqualError(t, err, "Title is required")
	require.Equal(t, 1, runs)

	_, _ = Query(ctx, c, key, n.fetch(nil))
	require.Equal(t, int32(1), n.calls.Load())
}

func TestQuery_TypeMismatch(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	_, _ = Query(ctx, c, "k", func(context.Context) (int, error) { return 1, nil })
	_, err := Query(ctx, c, "k", func(context.Context) (string, error) { return "", nil })
	require.ErrorIs(t, err, ErrType)
}

func TestReset(t *testing.T) {
	t.Parallel()
	c := New()
	_, _ = Query(context.Background(), c, "k", func(context.Context) (int, error) { return 1, nil })
	c.Reset()
	_, ok := c.Snapshot("k")
	require.False(t, ok)
	require.Equal(t, Idle, c.State("k"))
}

// held returns a fetch whose first call blocks until release is closed and yields
// first; later calls return later immediately.
func held(first, later string, started, release chan struct{}, calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return first, nil
		}
		return later, nil
	}
}

func TestRefetch_AfterInvalidateDoesNotAdoptEarlierFetch(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	key := NewKey("blogs", 1)
	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	fetch := held("before delete", "after delete", started, release, &calls)

	first := make(chan string, 1)
	go func() {
		v, _ := Query(ctx, c, key, fetch)
		first <- v
	}()
	<-started

	c.Invalidate(key)
	refetched := make(chan string, 1)
	go func() {
		v, _ := Refetch(ctx, c, key, fetch)
		refetched <- v
	}()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load(), "refetch waits for the running fetch")
	close(release)

	require.Equal(t, "before delete", <-first)
	require.Equal(t, "after delete", <-refetched)
	v, err := Query(ctx, c, key, fetch)
	require.NoError(t, err)
	require.Equal(t, "after delete", v)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, Success, c.State(key))
}

func TestInvalidate_DuringFetchKeepsEntryStale(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	key := NewKey("videos", 1)
	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	fetch := held("old", "new", started, release, &calls)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Query(ctx, c, key, fetch)
	}()
	<-started
	c.Invalidate(key)
	close(release)
	<-done

	v, err := Query(ctx, c, key, fetch)
	require.NoError(t, err)
	require.Equal(t, "new", v)
	require.Equal(t, int32(2), calls.Load())
}

func TestReset_DetachesFetchInFlight(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	key := NewKey("notifications", 1)
	var calls atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	fetch := held("previous session", "current session", started, release, &calls)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Query(ctx, c, key, fetch)
	}()
	<-started
	c.Reset()

	v, err := Query(ctx, c, key, fetch)
	require.NoError(t, err)
	require.Equal(t, "current session", v)

	close(release)
	<-done
	s, ok := c.Snapshot(key)
	require.True(t, ok)
	require.Equal(t, "current session", s.Data)
}
