package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/webinspector/internal/repo"
)

var _ repo.KV = (*Store)(nil)

// Store keeps both scopes in process memory. Values are copied on the way in
// and out so callers cannot alias stored bytes.
type Store struct {
	mu   sync.RWMutex
	data map[repo.Scope]map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[repo.Scope]map[string][]byte)}
}

func (m *Store) Get(ctx context.Context, scope repo.Scope, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[scope][key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Store) Put(ctx context.Context, scope repo.Scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.data[scope]
	if s == nil {
		s = make(map[string][]byte)
		m.data[scope] = s
	}
	s[key] = append([]byte(nil), value...)
	return nil
}

func (m *Store) Delete(ctx context.Context, scope repo.Scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[scope], key)
	return nil
}

func (m *Store) Close() error { return nil }
