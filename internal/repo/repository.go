package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Scope separates the small synced configuration from volatile local data.
type Scope string

const (
	ScopeSynced Scope = "sync"
	ScopeLocal  Scope = "local"
)

// Synced keys.
const (
	KeyIntervalMinutes = "intervalMinutes"
	KeyAutoStart       = "autoStartOnLaunch"
	KeyNetworkChecks   = "checks.network"
	KeyPageChecks      = "checks.page"
)

// Local keys.
const (
	KeyIsRunning = "isRunning"
	KeyResultLog = "resultLog"
)

var ErrNotFound = errors.New("repo: key not found")

// KV is the persistence port. Values are opaque JSON documents; swap in any
// adapter (memory, sqlite, postgres, redis).
type KV interface {
	// Get returns ErrNotFound when key has never been written or was deleted.
	Get(ctx context.Context, scope Scope, key string) ([]byte, error)
	Put(ctx context.Context, scope Scope, key string, value []byte) error
	Delete(ctx context.Context, scope Scope, key string) error
}

// GetJSON decodes key into out. found is false when the key is absent.
func GetJSON(ctx context.Context, kv KV, scope Scope, key string, out any) (found bool, err error) {
	b, err := kv.Get(ctx, scope, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func PutJSON(ctx context.Context, kv KV, scope Scope, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	return kv.Put(ctx, scope, key, b)
}
