package repo_test

import (
	"testing"

	"github.com/hamed0406/webinspector/internal/repo"
	"github.com/hamed0406/webinspector/internal/repo/memory"
	pg "github.com/hamed0406/webinspector/internal/repo/postgres"
	rd "github.com/hamed0406/webinspector/internal/repo/redis"
	"github.com/hamed0406/webinspector/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.KV = memory.New()
	var _ repo.KV = (*pg.Store)(nil)
	var _ repo.KV = (*sqlite.Store)(nil)
	var _ repo.KV = (*rd.Store)(nil)
}
