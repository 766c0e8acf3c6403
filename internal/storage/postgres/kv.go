package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/mediadesk/internal/storage"
)

const table = "kv_store"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// KV implements storage.Storage on the kv_store table.
type KV struct {
	db *DB
}

var _ storage.Storage = (*KV)(nil)

// NewKV constructs a store over db.
func NewKV(db *DB) *KV { return &KV{db: db} }

// Get loads a single slot.
func (r *KV) Get(ctx context.Context, key string) (string, bool, error) {
	q, args, err := psql.Select("value").From(table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, err
	}
	var v string
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts a slot.
func (r *KV) Set(ctx context.Context, key, value string) error {
	q, args, err := psql.Insert(table).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Delete removes a slot if present.
func (r *KV) Delete(ctx context.Context, key string) error {
	q, args, err := psql.Delete(table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
