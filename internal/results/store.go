// Package results owns the bounded result log kept in the local scope.
package results

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/repo"
)

const DefaultMaxResults = 100

// Store is the only writer of the result log. Append is an atomic
// read-modify-write with respect to every other call on the same Store.
type Store struct {
	kv  repo.KV
	max int
	mu  sync.Mutex
}

func New(kv repo.KV, maxResults int) *Store {
	if maxResults < 1 {
		maxResults = DefaultMaxResults
	}
	return &Store{kv: kv, max: maxResults}
}

func (s *Store) Max() int { return s.max }

// Append merges batch into the log, keeps the newest Max entries and stores
// them newest-first. An empty batch does not touch storage.
func (s *Store) Append(ctx context.Context, batch []domain.RunResult) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx)
	if err != nil {
		return err
	}
	merged := make([]domain.RunResult, 0, len(existing)+len(batch))
	merged = append(merged, existing...)
	merged = append(merged, batch...)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if len(merged) > s.max {
		merged = merged[:s.max]
	}
	if err := repo.PutJSON(ctx, s.kv, repo.ScopeLocal, repo.KeyResultLog, merged); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

// List returns the log newest-first.
func (s *Store) List(ctx context.Context) ([]domain.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return repo.PutJSON(ctx, s.kv, repo.ScopeLocal, repo.KeyResultLog, []domain.RunResult{})
}

func (s *Store) load(ctx context.Context) ([]domain.RunResult, error) {
	out := []domain.RunResult{}
	if _, err := repo.GetJSON(ctx, s.kv, repo.ScopeLocal, repo.KeyResultLog, &out); err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	return out, nil
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Error   int `json:"error"`
}

func Summarize(rs []domain.RunResult) Summary {
	sum := Summary{Total: len(rs)}
	for _, r := range rs {
		if r.Failed() {
			sum.Error++
		} else {
			sum.Success++
		}
	}
	return sum
}
