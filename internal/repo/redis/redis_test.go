package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/webinspector/internal/repo"
)

func TestRedisStore_PutGetDelete(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := New(ctx, Options{Addr: addr, Prefix: fmt.Sprintf("wi-test-%d", time.Now().UnixNano())})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, repo.ScopeSynced, repo.KeyPageChecks)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	require.NoError(t, s.Put(ctx, repo.ScopeSynced, repo.KeyPageChecks, []byte(`[]`)))
	v, err := s.Get(ctx, repo.ScopeSynced, repo.KeyPageChecks)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(v))

	require.NoError(t, s.Delete(ctx, repo.ScopeSynced, repo.KeyPageChecks))
	_, err = s.Get(ctx, repo.ScopeSynced, repo.KeyPageChecks)
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s := &Store{prefix: defaultPrefix}
	assert.Equal(t, "webinspector:local:resultLog", s.key(repo.ScopeLocal, repo.KeyResultLog))
}

func TestParseDSN(t *testing.T) {
	o, err := ParseDSN("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", o.Addr)

	o, err = ParseDSN("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, "secret", o.Password)
	assert.Equal(t, 2, o.DB)

	_, err = ParseDSN("http://nope")
	assert.Error(t, err)
}
