package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/config"
	"github.com/hamed0406/webinspector/internal/repo"
	"github.com/hamed0406/webinspector/internal/repo/memory"
	"github.com/hamed0406/webinspector/internal/repo/postgres"
	"github.com/hamed0406/webinspector/internal/repo/redis"
	"github.com/hamed0406/webinspector/internal/repo/sqlite"
)

type kvCloser interface {
	repo.KV
	io.Closer
}

// backends opens the local and synced KV stores, sharing one connection when
// both point at the same driver and DSN.
type backends struct {
	local  kvCloser
	synced kvCloser
}

func openBackends(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*backends, error) {
	local, err := openKV(ctx, "local", cfg.Local, log)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if cfg.Synced == cfg.Local && cfg.Local.Driver != "memory" {
		return &backends{local: local, synced: local}, nil
	}
	synced, err := openKV(ctx, "synced", cfg.Synced, log)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("synced storage: %w", err)
	}
	return &backends{local: local, synced: synced}, nil
}

func (b *backends) Close() error {
	err := b.local.Close()
	if b.synced != b.local {
		err = multierr.Append(err, b.synced.Close())
	}
	return err
}

// The local scope holds one daemon's result log and running flag.
var errRedisLocal = errors.New("redis is only supported for the synced scope")

func openKV(ctx context.Context, scope string, b config.Backend, log *zap.Logger) (kvCloser, error) {
	switch b.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, b.DSN)
	case "postgres":
		return postgres.New(ctx, b.DSN, log)
	case "redis":
		if scope == "local" {
			return nil, errRedisLocal
		}
		o, err := redis.ParseDSN(b.DSN)
		if err != nil {
			return nil, err
		}
		return redis.New(ctx, o)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", b.Driver)
	}
}
