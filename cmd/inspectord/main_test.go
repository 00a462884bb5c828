package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/config"
	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/repo"
	"github.com/hamed0406/webinspector/internal/repo/memory"
)

func TestSeedChecks(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network:
  - name: API
    url: https://api.example.com/health
page:
  - name: Home
    url: https://example.com
`), 0o644))

	s := repo.NewSettings(memory.New(), 30)
	require.NoError(t, seedChecks(ctx, s, path, zap.NewNop()))

	l, err := s.Checks(ctx)
	require.NoError(t, err)
	require.Len(t, l.Network, 1)
	require.Len(t, l.Page, 1)
	assert.NotEmpty(t, l.Network[0].ID)
	assert.Equal(t, "GET", l.Network[0].Method)

	// a non-empty catalogue is left alone
	_, err = s.UpsertPageCheck(ctx, domain.PageCheck{Name: "Extra", URL: "https://extra.example.com"})
	require.NoError(t, err)
	require.NoError(t, seedChecks(ctx, s, path, zap.NewNop()))
	l, err = s.Checks(ctx)
	require.NoError(t, err)
	assert.Len(t, l.Page, 2)
}

func TestOpenKV_RejectsRedisForLocalScope(t *testing.T) {
	_, err := openKV(context.Background(), "local", config.Backend{Driver: "redis", DSN: "localhost:6379"}, zap.NewNop())
	assert.ErrorIs(t, err, errRedisLocal)
}
