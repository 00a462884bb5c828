package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/webinspector/internal/repo"
)

func TestSQLiteStore_RoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)

	_, err = s.Get(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	require.NoError(t, s.Put(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes, []byte("5")))
	require.NoError(t, s.Put(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes, []byte("7")))
	require.NoError(t, s.Put(ctx, repo.ScopeLocal, repo.KeyIntervalMinutes, []byte("1")))
	require.NoError(t, s.Close())

	// migrations are idempotent and data survives a reopen
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes)
	require.NoError(t, err)
	assert.Equal(t, "7", string(v))

	require.NoError(t, s.Delete(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes))
	_, err = s.Get(ctx, repo.ScopeSynced, repo.KeyIntervalMinutes)
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	v, err = s.Get(ctx, repo.ScopeLocal, repo.KeyIntervalMinutes)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
}

func TestSQLiteStore_BacksSettings(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer s.Close()

	rs := repo.NewRunStateStore(s)
	require.NoError(t, rs.SetRunning(ctx, true))
	running, err := rs.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "kv.db?_busy_timeout=5000&_journal_mode=WAL", withPragmas("kv.db"))
	assert.Equal(t, "file:kv.db?_busy_timeout=5000&_journal_mode=WAL&cache=shared", withPragmas("file:kv.db?cache=shared"))
	assert.Equal(t, "kv.db?_busy_timeout=100&_journal_mode=WAL", withPragmas("kv.db?_busy_timeout=100"))
}

func TestSQLiteStore_OpenWithQuery(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "file:"+filepath.Join(t.TempDir(), "kv.db")+"?cache=shared")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, repo.ScopeLocal, repo.KeyIsRunning, []byte("true")))
	v, err := s.Get(ctx, repo.ScopeLocal, repo.KeyIsRunning)
	require.NoError(t, err)
	assert.Equal(t, "true", string(v))
}
