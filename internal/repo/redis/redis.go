// Package redis stores the KV scopes as plain string keys, which suits the
// synced scope when several daemons share one configuration.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/webinspector/internal/repo"
)

var _ repo.KV = (*Store)(nil)

const defaultPrefix = "webinspector"

type Store struct {
	client *redis.Client
	prefix string
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ParseDSN accepts either a redis:// URL or a bare host:port.
func ParseDSN(dsn string) (Options, error) {
	if !strings.Contains(dsn, "://") {
		return Options{Addr: dsn}, nil
	}
	ro, err := redis.ParseURL(dsn)
	if err != nil {
		return Options{}, fmt.Errorf("parse redis dsn: %w", err)
	}
	return Options{Addr: ro.Addr, Password: ro.Password, DB: ro.DB}, nil
}

// New connects and pings the server.
func New(ctx context.Context, o Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, o.Prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(scope repo.Scope, key string) string {
	return s.prefix + ":" + string(scope) + ":" + key
}

func (s *Store) Get(ctx context.Context, scope repo.Scope, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, scope repo.Scope, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(scope, key), value, 0).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope repo.Scope, key string) error {
	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
