package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/mediadesk/internal/api"
	"github.com/and161185/mediadesk/internal/errs"
	"github.com/and161185/mediadesk/internal/live"
	"github.com/and161185/mediadesk/internal/live/wschannel"
	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/optimistic"
	"github.com/and161185/mediadesk/internal/storage"
	"github.com/and161185/mediadesk/internal/testbackend"
	"github.com/and161185/mediadesk/internal/token"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "s3cret"
)

type env struct {
	backend *testbackend.Server
	srv     *httptest.Server
	store   storage.Storage
	d       *Dashboard
}

func setup(t *testing.T) *env {
	t.Helper()
	b, err := testbackend.New(testbackend.Config{
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		SignKey:       []byte("test-signing-key"),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	st := storage.NewMemory()
	d, err := Build(Config{API: api.Config{BaseURL: srv.URL}}, st)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return &env{backend: b, srv: srv, store: st, d: d}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	_, err := e.d.Login(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
}

func (e *env) last(t *testing.T) testbackend.Request {
	t.Helper()
	reqs := e.backend.Requests()
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}

func seedBlogs(b *testbackend.Server, n int) {
	for i := 0; i < n; i++ {
		b.SeedContent(model.KindBlog, model.ContentItem{ID: fmt.Sprintf("b%02d", i), Title: fmt.Sprintf("Post %d", i)})
	}
}

func TestLoginListPaginates(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 23)
	ctx := context.Background()

	e.login(t)
	tok, ok := e.d.Tokens.Token(ctx)
	require.True(t, ok)
	stored, _, err := e.store.Get(ctx, token.Key)
	require.NoError(t, err)
	require.Equal(t, tok, stored)

	page, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	req := e.last(t)
	require.Equal(t, "/api/v1/blogs", req.Path)
	require.Equal(t, "limit=10&page=1", req.Query)
	require.Equal(t, "Bearer "+tok, req.Auth)

	require.Equal(t, 23, page.Meta.Total)
	require.Equal(t, 3, page.Meta.TotalPages)
	require.Len(t, page.PageNumbers(), 3)
	require.Len(t, page.Items, 10)

	coll, ok := e.d.State.Collection(model.KindBlog)
	require.True(t, ok)
	require.Equal(t, 23, coll.Meta.Total)
}

func TestPaginationConsistency(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 23)
	e.login(t)
	for _, size := range []int{1, 5, 10, 23, 50} {
		first, err := e.d.ListContent(context.Background(), model.KindBlog, model.ListParams{Page: 1, Limit: size})
		require.NoError(t, err)
		want := (23 + size - 1) / size
		require.Equal(t, want, first.Meta.TotalPages)
		for p := 1; p <= first.Meta.TotalPages; p++ {
			page, err := e.d.ListContent(context.Background(), model.KindBlog, model.ListParams{Page: p, Limit: size})
			require.NoError(t, err)
			require.LessOrEqual(t, len(page.Items), size)
		}
	}
}

func TestListIsCached(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 3)
	e.login(t)
	ctx := context.Background()

	a, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	b, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, 1, e.backend.Count(http.MethodGet, "/api/v1/blogs"))

	_, err = e.d.RefetchContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 2, e.backend.Count(http.MethodGet, "/api/v1/blogs"))
}

func TestDeleteRefetchesList(t *testing.T) {
	e := setup(t)
	e.backend.SeedContent(model.KindBlog,
		model.ContentItem{ID: "first", Title: "First"},
		model.ContentItem{ID: "abc123", Title: "Doomed"},
		model.ContentItem{ID: "last", Title: "Last"},
	)
	e.login(t)
	ctx := context.Background()

	_, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.NoError(t, e.d.DeleteContent(ctx, model.KindBlog, "abc123"))

	require.Equal(t, 1, e.backend.Count(http.MethodDelete, "/api/v1/blogs/abc123"))
	require.Equal(t, 2, e.backend.Count(http.MethodGet, "/api/v1/blogs"))

	page, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 2, e.backend.Count(http.MethodGet, "/api/v1/blogs"), "refetched data is served from cache")
	for _, it := range page.Items {
		require.NotEqual(t, "abc123", it.ID)
	}
	coll, _ := e.d.State.Collection(model.KindBlog)
	for _, it := range coll.Items {
		require.NotEqual(t, "abc123", it.ID)
	}
}

func TestFailedMutationSurfacesServerMessage(t *testing.T) {
	e := setup(t)
	e.login(t)
	_, err := e.d.SaveContent(context.Background(), model.KindBlog, "", model.ContentInput{Description: "<p>no title</p>"})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Equal(t, "Title is required", e.d.Notice(err))
}

func TestPinnedAndRemainingAreDisjoint(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 12)
	e.login(t)
	ctx := context.Background()
	for _, id := range []string{"b01", "b04", "b11"} {
		_, err := e.d.SetPinned(ctx, model.KindBlog, id, true)
		require.NoError(t, err)
	}

	top, rest, meta, err := e.d.PinnedAndRemaining(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, 12, meta.Total)
	seen := map[string]bool{}
	for _, it := range top {
		seen[it.ID] = true
	}
	for _, it := range rest {
		require.False(t, seen[it.ID], "%s shown twice", it.ID)
	}
	require.Len(t, rest, 8, "page of 10 minus b01 and b04")

	_, err = e.d.SetPinned(ctx, model.KindBlog, "b04", false)
	require.NoError(t, err)
	top, _, _, err = e.d.PinnedAndRemaining(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.Len(t, top, 2)
}

func TestLogoutDropsHeaderAndState(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 2)
	e.login(t)
	ctx := context.Background()
	_, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)

	require.NoError(t, e.d.Logout(ctx))
	require.Equal(t, 1, e.backend.Count(http.MethodPost, "/api/v1/auth/logout"))
	_, ok := e.d.State.Collection(model.KindBlog)
	require.False(t, ok)
	require.ErrorIs(t, e.d.RequireAuth(ctx), errs.ErrNotAuthenticated)

	_, err = e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Empty(t, e.last(t).Auth)
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.d.State.SetCollection(model.KindVideo, model.Page[model.ContentItem]{Meta: model.Meta{Total: 1}})
	require.NoError(t, e.d.Tokens.Set(ctx, "not-a-jwt"))
	require.NoError(t, e.d.RequireAuth(ctx))

	_, err := e.d.ListContent(ctx, model.KindVideo, model.ListParams{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, ok := e.d.Tokens.Token(ctx)
	require.False(t, ok)
	require.Empty(t, e.d.State.Totals())
}

func TestStats(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 4)
	e.backend.SeedContent(model.KindPodcast, model.ContentItem{Title: "Ep"})
	e.login(t)
	stats, err := e.d.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[model.Kind]int{
		model.KindBlog: 4, model.KindVideo: 0, model.KindPodcast: 1, model.KindPublication: 0,
	}, stats)
}

func TestSearchDoesNotOverwriteSyncedTotals(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 23)
	e.login(t)
	ctx := context.Background()

	page, err := e.d.ListContent(ctx, model.KindBlog, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 23, page.Meta.Total)

	page, err = e.d.ListContent(ctx, model.KindBlog, model.ListParams{Search: "post 7"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Meta.Total)

	col, ok := e.d.State.Collection(model.KindBlog)
	require.True(t, ok)
	require.Equal(t, 23, col.Meta.Total)
	stats, err := e.d.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 23, stats[model.KindBlog])
}

func TestDeleteRefreshesSearchReads(t *testing.T) {
	e := setup(t)
	seedBlogs(e.backend, 3)
	e.login(t)
	ctx := context.Background()

	search := model.ListParams{Search: "post 1"}
	page, err := e.d.ListContent(ctx, model.KindBlog, search)
	require.NoError(t, err)
	require.Equal(t, 1, page.Meta.Total)

	require.NoError(t, e.d.DeleteContent(ctx, model.KindBlog, "b01"))
	page, err = e.d.ListContent(ctx, model.KindBlog, search)
	require.NoError(t, err)
	require.Equal(t, 0, page.Meta.Total)
}

func TestSuggestionsOptimistic(t *testing.T) {
	e := setup(t)
	e.login(t)
	ctx := context.Background()

	s, err := e.d.AddSuggestion(ctx, "Drink water", "Ann")
	require.NoError(t, err)
	require.False(t, optimistic.IsTemp(s.ID))

	_, err = e.d.AddSuggestion(ctx, "   ", "")
	require.Error(t, err)
	require.Equal(t, "Suggestion text is required", e.d.Notice(err))

	l, err := e.d.Suggestions(ctx)
	require.NoError(t, err)
	require.Len(t, l.Snapshot(), 1)

	require.NoError(t, e.d.RemoveSuggestion(ctx, s.ID))
	require.Empty(t, l.Snapshot())
	require.Error(t, e.d.RemoveSuggestion(ctx, "missing"))
}

func TestNotificationsMarkRead(t *testing.T) {
	e := setup(t)
	e.backend.SeedNotifications(model.Notification{ID: "n1", Title: "New comment"}, model.Notification{ID: "n2", Title: "Upload done"})
	e.login(t)
	ctx := context.Background()

	p, err := e.d.Notifications(ctx, model.ListParams{})
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	require.False(t, p.Items[0].Read)

	require.NoError(t, e.d.MarkRead(ctx, "n1"))
	p, err = e.d.Notifications(ctx, model.ListParams{})
	require.NoError(t, err)
	require.True(t, p.Items[0].Read)
	require.False(t, p.Items[1].Read)

	require.NoError(t, e.d.MarkRead(ctx, ""))
	p, _ = e.d.Notifications(ctx, model.ListParams{})
	require.True(t, p.Items[1].Read)
}

type chunkSource struct{ ch chan live.Chunk }

func (s chunkSource) Chunks() <-chan live.Chunk { return s.ch }
func (s chunkSource) Close() error              { return nil }

func TestBroadcastResumesAsLive(t *testing.T) {
	e := setup(t)
	e.backend.SeedContent(model.KindPodcast, model.ContentItem{ID: "pod1", Title: "Ep 1"})
	e.login(t)
	ctx := context.Background()

	dialer := wschannel.Dialer{URL: "ws" + strings.TrimPrefix(e.srv.URL, "http"), Tokens: e.d.Tokens}
	b := e.d.Broadcaster("pod1", live.Config{ReconnectInterval: 20 * time.Millisecond}, dialer)
	require.NoError(t, b.Open(ctx))
	require.Equal(t, live.Ready, b.State())

	src := chunkSource{ch: make(chan live.Chunk, 4)}
	require.NoError(t, b.GoLive(ctx, src))
	v, _, err := e.store.Get(ctx, model.LiveFlagKey("pod1"))
	require.NoError(t, err)
	require.Equal(t, "true", v)

	src.ch <- live.Chunk{Data: []byte{1, 2, 3}, MimeType: "audio/webm"}
	require.Eventually(t, func() bool { return e.backend.Chunks("pod1") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, b.Close())

	// A fresh mirror for the same podcast reports live before the join completes.
	var first live.State
	seen := false
	reload := e.d.Broadcaster("pod1", live.Config{}, dialer, live.WithStateHook(func(s live.State) {
		if !seen {
			first, seen = s, true
		}
	}))
	require.NoError(t, reload.Open(ctx))
	require.Equal(t, live.Live, first)
	require.Equal(t, live.Live, reload.State())

	require.NoError(t, reload.Stop(ctx))
	require.Equal(t, live.Ended, reload.State())
	_, ok, err := e.store.Get(ctx, model.LiveFlagKey("pod1"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, reload.Close())
}

func TestSetStatusRefreshesList(t *testing.T) {
	e := setup(t)
	e.backend.SeedContent(model.KindVideo, model.ContentItem{ID: "v1", Title: "Clip"})
	e.login(t)
	ctx := context.Background()

	page, err := e.d.ListContent(ctx, model.KindVideo, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, "draft", page.Items[0].Status)

	it, err := e.d.SetStatus(ctx, model.KindVideo, "v1", "published")
	require.NoError(t, err)
	require.Equal(t, "published", it.Status)
	require.NotNil(t, it.PublishedAt)

	page, err = e.d.ListContent(ctx, model.KindVideo, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, "published", page.Items[0].Status)
}

func TestSiteSettingsAndSocialLinks(t *testing.T) {
	e := setup(t)
	e.login(t)
	ctx := context.Background()

	in := model.WebsiteContentInput{}
	in.HeroTitle = "Listen louder"
	site, err := e.d.UpdateWebsiteContent(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "Listen louder", site.HeroTitle)
	got, err := e.d.WebsiteContent(ctx)
	require.NoError(t, err)
	require.Equal(t, "Listen louder", got.HeroTitle)

	bad := model.WebsiteContentInput{}
	bad.ContactEmail = "nobody"
	_, err = e.d.UpdateWebsiteContent(ctx, bad)
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Equal(t, "Contact email is invalid", e.d.Notice(err))

	l, err := e.d.SaveSocialLink(ctx, model.SocialLink{Platform: "youtube", URL: "https://youtube.com/@me"})
	require.NoError(t, err)
	require.NotEmpty(t, l.ID)
	_, err = e.d.SaveSocialLink(ctx, model.SocialLink{Platform: "YouTube", URL: "https://youtube.com/@other"})
	require.ErrorIs(t, err, errs.ErrConflict)

	l.URL = "https://youtube.com/@renamed"
	_, err = e.d.SaveSocialLink(ctx, l)
	require.NoError(t, err)
	links, err := e.d.SocialLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "https://youtube.com/@renamed", links[0].URL)
}

func TestForcedLogoutIsLogged(t *testing.T) {
	b, err := testbackend.New(testbackend.Config{AdminEmail: adminEmail, AdminPassword: adminPassword, SignKey: []byte("k")})
	require.NoError(t, err)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	core, logs := observer.New(zap.WarnLevel)
	d, err := Build(Config{API: api.Config{BaseURL: srv.URL}, Log: zap.New(core)}, storage.NewMemory())
	require.NoError(t, err)
	t.Cleanup(d.Close)

	ctx := context.Background()
	require.NoError(t, d.Tokens.Set(ctx, "revoked"))
	_, err = d.Notifications(ctx, model.ListParams{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 1, logs.FilterMessage("session rejected; logging out").Len())
}
