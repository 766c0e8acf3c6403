package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/mediadesk/internal/storage"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(exp)}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestStore_SetTokenClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	s := New(st, nil)

	_, ok := s.Token(ctx)
	require.False(t, ok)
	require.Equal(t, StatusNone, s.Status(ctx))

	require.NoError(t, s.Set(ctx, "opaque-token"))
	v, ok := s.Token(ctx)
	require.True(t, ok)
	require.Equal(t, "opaque-token", v)
	require.Equal(t, StatusValid, s.Status(ctx))

	raw, ok, _ := st.Get(ctx, Key)
	require.True(t, ok)
	require.Equal(t, "opaque-token", raw)

	require.NoError(t, s.Clear(ctx))
	_, ok = s.Token(ctx)
	require.False(t, ok)
	_, ok, _ = st.Get(ctx, Key)
	require.False(t, ok)
}

func TestStore_ReadsPersistedValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.Set(ctx, Key, "from-last-run"))

	v, ok := New(st, nil).Token(ctx)
	require.True(t, ok)
	require.Equal(t, "from-last-run", v)
}

func TestStore_ExpiredJWTIsAbsentAndCleared(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	s := New(st, nil)

	require.NoError(t, s.Set(ctx, signed(t, time.Now().Add(-time.Minute))))
	require.Equal(t, StatusExpired, s.Status(ctx))

	_, ok := s.Token(ctx)
	require.False(t, ok)
	_, ok, _ = st.Get(ctx, Key)
	require.False(t, ok, "expired token must be removed from storage")
	require.Equal(t, StatusNone, s.Status(ctx))
}

func TestStore_ValidJWT(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(storage.NewMemory(), nil)
	tok := signed(t, time.Now().Add(time.Hour))
	require.NoError(t, s.Set(ctx, tok))

	got, ok := s.Token(ctx)
	require.True(t, ok)
	require.Equal(t, tok, got)

	exp, ok := ExpiresAt(tok)
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)
}

func TestExpiresAt_Opaque(t *testing.T) {
	t.Parallel()
	_, ok := ExpiresAt("not-a-jwt")
	require.False(t, ok)
}

type brokenStorage struct{ storage.Storage }

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func TestStore_ReadErrorMeansAbsent(t *testing.T) {
	t.Parallel()
	s := New(brokenStorage{storage.NewMemory()}, nil)
	_, ok := s.Token(context.Background())
	require.False(t, ok)
	require.Equal(t, StatusNone, s.Status(context.Background()))
}
