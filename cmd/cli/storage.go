package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/config"
	"github.com/and161185/mediadesk/internal/migrate"
	"github.com/and161185/mediadesk/internal/storage"
	"github.com/and161185/mediadesk/internal/storage/postgres"
)

// openStorage builds the slot store for cfg. With a passphrase every value is sealed
// before it reaches the backing store. The returned func releases it.
func openStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Storage, func(), error) {
	var (
		st      storage.Storage
		release = func() {}
	)
	switch cfg.Driver {
	case config.DriverMemory:
		st = storage.NewMemory()
	case config.DriverFile:
		f := storage.NewFile(cfg.Path)
		log.Debug("file storage", zap.String("path", f.Path()))
		st = f
	case config.DriverPostgres:
		if _, err := migrate.Up(ctx, cfg.DSN, log); err != nil {
			return nil, nil, fmt.Errorf("migrate storage: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect storage: %w", err)
		}
		st, release = postgres.NewKV(db), db.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	if cfg.Passphrase == "" {
		return st, release, nil
	}
	sealed, err := storage.NewSealed(ctx, st, cfg.Passphrase)
	if err != nil {
		release()
		return nil, nil, err
	}
	return sealed, release, nil
}
