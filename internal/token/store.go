// Package token owns the session credential: the only writer of the bearer token slot.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/storage"
)

// Key is the storage slot holding the bearer token.
const Key = "accessToken"

// Status classifies the stored credential.
type Status string

const (
	StatusNone    Status = "none"
	StatusValid   Status = "valid"
	StatusExpired Status = "expired"
)

// Store persists the bearer token and decodes its expiry when it is a JWT.
type Store struct {
	st  storage.Storage
	log *zap.Logger
	now func() time.Time

	// cached copy of the slot; the store is the only writer
	mu     sync.RWMutex
	loaded bool
	value  string
}

// New returns a Store over st. A nil logger disables logging.
func New(st storage.Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{st: st, log: log, now: time.Now}
}

// Set persists value; the token format is not validated.
func (s *Store) Set(ctx context.Context, value string) error {
	if err := s.st.Set(ctx, Key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded, s.value = true, value
	s.mu.Unlock()
	return nil
}

// Clear removes the slot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.st.Delete(ctx, Key); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded, s.value = true, ""
	s.mu.Unlock()
	return nil
}

// Token returns the stored credential, or false when none is usable.
// An expired JWT is removed from storage and reported absent.
func (s *Store) Token(ctx context.Context) (string, bool) {
	v, err := s.raw(ctx)
	if err != nil {
		s.log.Warn("token store read failed", zap.Error(err))
		return "", false
	}
	if v == "" {
		return "", false
	}
	if exp, ok := ExpiresAt(v); ok && !s.now().Before(exp) {
		s.log.Info("stored token expired; clearing", zap.Time("expires_at", exp))
		if err := s.Clear(ctx); err != nil {
			s.log.Warn("clear expired token", zap.Error(err))
		}
		return "", false
	}
	return v, true
}

// Status reports whether a token is stored and, for JWTs, whether it has expired.
// Unlike Token it never modifies storage.
func (s *Store) Status(ctx context.Context) Status {
	v, err := s.raw(ctx)
	if err != nil || v == "" {
		return StatusNone
	}
	if exp, ok := ExpiresAt(v); ok && !s.now().Before(exp) {
		return StatusExpired
	}
	return StatusValid
}

func (s *Store) raw(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		v := s.value
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	v, _, err := s.st.Get(ctx, Key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.loaded, s.value = true, v
	s.mu.Unlock()
	return v, nil
}

// ExpiresAt decodes the exp claim of a JWT without verifying its signature.
// Opaque tokens and JWTs without exp report false.
func ExpiresAt(tok string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
