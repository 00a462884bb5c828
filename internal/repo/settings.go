package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hamed0406/webinspector/internal/domain"
)

// Settings is the typed view of the synced scope. Check list writes are
// read-modify-write and serialised by mu.
type Settings struct {
	kv              KV
	defaultInterval int
	mu              sync.Mutex
}

func NewSettings(kv KV, defaultInterval int) *Settings {
	if defaultInterval < 1 {
		defaultInterval = domain.DefaultIntervalMinutes
	}
	return &Settings{kv: kv, defaultInterval: defaultInterval}
}

func (s *Settings) Checks(ctx context.Context) (domain.CheckList, error) {
	var l domain.CheckList
	if _, err := GetJSON(ctx, s.kv, ScopeSynced, KeyNetworkChecks, &l.Network); err != nil {
		return domain.CheckList{}, err
	}
	if _, err := GetJSON(ctx, s.kv, ScopeSynced, KeyPageChecks, &l.Page); err != nil {
		return domain.CheckList{}, err
	}
	return l, nil
}

// SaveChecks replaces the whole catalogue in one write. Checks without an id
// are given one; the stored list is returned.
func (s *Settings) SaveChecks(ctx context.Context, l domain.CheckList) (domain.CheckList, error) {
	for i := range l.Network {
		if l.Network[i].ID == "" {
			l.Network[i].ID = domain.CheckID(uuid.NewString())
		}
	}
	for i := range l.Page {
		if l.Page[i].ID == "" {
			l.Page[i].ID = domain.CheckID(uuid.NewString())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return l, s.saveLocked(ctx, l)
}

func (s *Settings) saveLocked(ctx context.Context, l domain.CheckList) error {
	if l.Network == nil {
		l.Network = []domain.NetworkCheck{}
	}
	if l.Page == nil {
		l.Page = []domain.PageCheck{}
	}
	if err := PutJSON(ctx, s.kv, ScopeSynced, KeyNetworkChecks, l.Network); err != nil {
		return err
	}
	return PutJSON(ctx, s.kv, ScopeSynced, KeyPageChecks, l.Page)
}

// UpsertNetworkCheck validates c, assigns an id when missing and replaces any
// check with the same id.
func (s *Settings) UpsertNetworkCheck(ctx context.Context, c domain.NetworkCheck) (domain.NetworkCheck, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return c, err
	}
	if c.ID == "" {
		c.ID = domain.CheckID(uuid.NewString())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.Checks(ctx)
	if err != nil {
		return c, err
	}
	l.Network = upsert(l.Network, c, func(x domain.NetworkCheck) domain.CheckID { return x.ID })
	return c, s.saveLocked(ctx, l)
}

func (s *Settings) UpsertPageCheck(ctx context.Context, c domain.PageCheck) (domain.PageCheck, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return c, err
	}
	if c.ID == "" {
		c.ID = domain.CheckID(uuid.NewString())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.Checks(ctx)
	if err != nil {
		return c, err
	}
	l.Page = upsert(l.Page, c, func(x domain.PageCheck) domain.CheckID { return x.ID })
	return c, s.saveLocked(ctx, l)
}

// DeleteCheck removes the check; ErrNotFound if no such id exists for kind.
func (s *Settings) DeleteCheck(ctx context.Context, kind domain.Kind, id domain.CheckID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.Checks(ctx)
	if err != nil {
		return err
	}
	var removed bool
	switch kind {
	case domain.KindNetwork:
		l.Network, removed = remove(l.Network, id, func(x domain.NetworkCheck) domain.CheckID { return x.ID })
	case domain.KindPage:
		l.Page, removed = remove(l.Page, id, func(x domain.PageCheck) domain.CheckID { return x.ID })
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidCheck, kind)
	}
	if !removed {
		return ErrNotFound
	}
	return s.saveLocked(ctx, l)
}

func (s *Settings) IntervalMinutes(ctx context.Context) (int, error) {
	var n int
	found, err := GetJSON(ctx, s.kv, ScopeSynced, KeyIntervalMinutes, &n)
	if err != nil {
		return 0, err
	}
	if !found || n < 1 {
		return s.defaultInterval, nil
	}
	return n, nil
}

func (s *Settings) SetIntervalMinutes(ctx context.Context, n int) error {
	return PutJSON(ctx, s.kv, ScopeSynced, KeyIntervalMinutes, n)
}

func (s *Settings) AutoStart(ctx context.Context) (bool, error) {
	var v bool
	_, err := GetJSON(ctx, s.kv, ScopeSynced, KeyAutoStart, &v)
	return v, err
}

func (s *Settings) SetAutoStart(ctx context.Context, v bool) error {
	return PutJSON(ctx, s.kv, ScopeSynced, KeyAutoStart, v)
}

func upsert[T any](list []T, item T, id func(T) domain.CheckID) []T {
	for i := range list {
		if id(list[i]) == id(item) {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

func remove[T any](list []T, target domain.CheckID, id func(T) domain.CheckID) ([]T, bool) {
	out := list[:0]
	removed := false
	for _, x := range list {
		if id(x) == target {
			removed = true
			continue
		}
		out = append(out, x)
	}
	return out, removed
}

// RunStateStore persists the scheduler's running flag in the local scope.
type RunStateStore struct {
	kv KV
}

func NewRunStateStore(kv KV) *RunStateStore { return &RunStateStore{kv: kv} }

func (r *RunStateStore) IsRunning(ctx context.Context) (bool, error) {
	var v bool
	_, err := GetJSON(ctx, r.kv, ScopeLocal, KeyIsRunning, &v)
	return v, err
}

func (r *RunStateStore) SetRunning(ctx context.Context, v bool) error {
	return PutJSON(ctx, r.kv, ScopeLocal, KeyIsRunning, v)
}
