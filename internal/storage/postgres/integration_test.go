//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/and161185/mediadesk/internal/migrate"
)

type KVIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *DB
	kv        *KV
}

func (s *KVIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mediadesk"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	_, err = migrate.Up(s.ctx, dsn, nil)
	s.Require().NoError(err)

	db, err := New(s.ctx, dsn)
	s.Require().NoError(err)
	s.db = db
	s.kv = NewKV(db)
}

func (s *KVIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *KVIntegrationSuite) TestRoundTrip() {
	_, ok, err := s.kv.Get(s.ctx, "accessToken")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.kv.Set(s.ctx, "accessToken", "a"))
	s.Require().NoError(s.kv.Set(s.ctx, "accessToken", "b"))
	v, ok, err := s.kv.Get(s.ctx, "accessToken")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("b", v)

	s.Require().NoError(s.kv.Delete(s.ctx, "accessToken"))
	_, ok, err = s.kv.Get(s.ctx, "accessToken")
	s.Require().NoError(err)
	s.False(ok)
}

func TestKVIntegrationSuite(t *testing.T) {
	suite.Run(t, new(KVIntegrationSuite))
}
