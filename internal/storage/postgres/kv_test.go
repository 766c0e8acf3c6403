package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestKV_Get_Found(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKV(db)

	mock.ExpectQuery(`SELECT value FROM kv_store WHERE key = \$1`).
		WithArgs("accessToken").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("tok"))

	v, ok, err := r.Get(context.Background(), "accessToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_Get_Missing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKV(db)

	mock.ExpectQuery(`SELECT value FROM kv_store`).
		WithArgs("podcast_live_pod1").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := r.Get(context.Background(), "podcast_live_pod1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_Get_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKV(db)

	mock.ExpectQuery(`SELECT value FROM kv_store`).
		WithArgs("k").
		WillReturnError(errors.New("conn reset"))

	_, _, err := r.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestKV_Set_Upserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKV(db)

	mock.ExpectExec(`INSERT INTO kv_store \(key,value\) VALUES \(\$1,\$2\) ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("accessToken", "tok").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Set(context.Background(), "accessToken", "tok"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewKV(db)

	mock.ExpectExec(`DELETE FROM kv_store WHERE key = \$1`).
		WithArgs("accessToken").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, r.Delete(context.Background(), "accessToken"))

	mock.ExpectExec(`DELETE FROM kv_store`).
		WithArgs("x").
		WillReturnError(errors.New("boom"))
	require.Error(t, r.Delete(context.Background(), "x"))
	require.NoError(t, mock.ExpectationsWereMet())
}
