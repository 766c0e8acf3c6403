// Package service wires the client data layer into one application context that
// front ends receive explicitly.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/api"
	"github.com/and161185/mediadesk/internal/errs"
	"github.com/and161185/mediadesk/internal/live"
	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/optimistic"
	"github.com/and161185/mediadesk/internal/query"
	"github.com/and161185/mediadesk/internal/state"
	"github.com/and161185/mediadesk/internal/storage"
	"github.com/and161185/mediadesk/internal/token"
)

const (
	contentPrefix       = "content/"
	searchPrefix        = "search/"
	pinnedPrefix        = "pinned/"
	notificationsPrefix = "notifications"
	suggestionsKey      = query.Key("suggestions")
	socialKey           = query.Key("social-links")
	siteKey             = query.Key("website-content")
)

// Dashboard is the application context: session, transport, cache and shared state.
type Dashboard struct {
	Tokens *token.Store
	API    *api.Client
	Cache  *query.Cache
	State  *state.Store

	store    storage.Storage
	pageSize int
	log      *zap.Logger
	unsub    func()

	sugMu       sync.Mutex
	suggestions *optimistic.List[model.Suggestion]
}

// Config carries what Build needs beyond storage.
type Config struct {
	API      api.Config
	PageSize int // default page size for list reads; 0 means model.DefaultLimit
	Log      *zap.Logger
}

// Build assembles a Dashboard over st. Every 401 from the backend forces a logout.
func Build(cfg Config, st storage.Storage, opts ...api.Option) (*Dashboard, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dashboard{
		Tokens:   token.New(st, log),
		Cache:    query.New(query.WithLogger(log)),
		State:    state.New(),
		store:    st,
		pageSize: cfg.PageSize,
		log:      log,
	}
	opts = append([]api.Option{api.WithLogger(log), api.WithUnauthorizedHandler(d.forceLogout)}, opts...)
	client, err := api.New(cfg.API, d.Tokens, opts...)
	if err != nil {
		return nil, err
	}
	d.API = client
	d.unsub = d.Cache.SubscribePrefix(contentPrefix, d.syncState)
	return d, nil
}

// Close detaches the state synchronisation hook.
func (d *Dashboard) Close() {
	if d.unsub != nil {
		d.unsub()
	}
}

// Login authenticates and stores the session token.
func (d *Dashboard) Login(ctx context.Context, email, password string) (model.User, error) {
	sess, err := query.Mutate(ctx, d.Cache, "login", func(ctx context.Context) (model.Session, error) {
		return d.API.Login(ctx, email, password)
	})
	if err != nil {
		return model.User{}, err
	}
	if err := d.Tokens.Set(ctx, sess.Token); err != nil {
		return model.User{}, fmt.Errorf("store token: %w", err)
	}
	d.log.Info("logged in", zap.String("user", sess.User.Email))
	return sess.User, nil
}

// Logout ends the server session when possible, then clears the token and resets
// all cached and shared state.
func (d *Dashboard) Logout(ctx context.Context) error {
	if _, ok := d.Tokens.Token(ctx); ok {
		if err := d.API.Logout(ctx); err != nil && !errors.Is(err, errs.ErrUnauthorized) {
			d.log.Warn("server logout failed", zap.Error(err))
		}
	}
	if err := d.Tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	d.reset()
	return nil
}

// RequireAuth is the guard run before entering the authenticated area.
func (d *Dashboard) RequireAuth(ctx context.Context) error {
	switch d.Tokens.Status(ctx) {
	case token.StatusValid:
		return nil
	case token.StatusExpired:
		d.forceLogout(ctx)
		return fmt.Errorf("%w: session expired", errs.ErrNotAuthenticated)
	default:
		return errs.ErrNotAuthenticated
	}
}

func (d *Dashboard) forceLogout(ctx context.Context) {
	d.log.Warn("session rejected; logging out")
	if err := d.Tokens.Clear(ctx); err != nil {
		d.log.Warn("clear token", zap.Error(err))
	}
	d.reset()
}

func (d *Dashboard) reset() {
	d.State.Reset()
	d.Cache.Reset()
	d.sugMu.Lock()
	d.suggestions = nil
	d.sugMu.Unlock()
}

// Notice is the text to show a user for a failed call. Server messages are
// passed through unchanged.
func (d *Dashboard) Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errs.ErrNotAuthenticated):
		return "Please log in"
	}
	return api.Message(err)
}

// Broadcaster returns a live mirror for podcastID that persists its flag in the
// dashboard's storage and starts and ends sessions through the API.
func (d *Dashboard) Broadcaster(podcastID string, cfg live.Config, dialer live.Dialer, opts ...live.Option) *live.Broadcaster {
	opts = append([]live.Option{live.WithLogger(d.log)}, opts...)
	return live.NewBroadcaster(podcastID, cfg, dialer, d.API, d.store, opts...)
}

func kindFromKey(k query.Key) (model.Kind, bool) {
	rest, ok := strings.CutPrefix(string(k), contentPrefix)
	if !ok {
		return "", false
	}
	res, _, _ := strings.Cut(rest, "/")
	kind, err := model.ParseKind(res)
	return kind, err == nil
}
