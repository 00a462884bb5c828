package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/events"
)

type staticChecks struct {
	list domain.CheckList
	err  error
}

func (s staticChecks) Checks(context.Context) (domain.CheckList, error) { return s.list, s.err }

type recSink struct {
	mu      sync.Mutex
	batches [][]domain.RunResult
	err     error
}

func (r *recSink) Append(_ context.Context, b []domain.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return r.err
}

type recAlerts struct{ got [][]domain.RunResult }

func (r *recAlerts) Evaluate(_ context.Context, rs []domain.RunResult) { r.got = append(r.got, rs) }

type recEvents struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recEvents) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
}

func (r *recEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.got))
	for _, ev := range r.got {
		out = append(out, ev.Type)
	}
	return out
}

type funcNetwork func(context.Context, domain.NetworkCheck) domain.RunResult

func (f funcNetwork) Probe(ctx context.Context, c domain.NetworkCheck) domain.RunResult {
	return f(ctx, c)
}

type funcPage func(context.Context, domain.PageCheck) domain.RunResult

func (f funcPage) Probe(ctx context.Context, c domain.PageCheck) domain.RunResult { return f(ctx, c) }

func okNetwork(_ context.Context, c domain.NetworkCheck) domain.RunResult {
	r := domain.NewResult(c)
	r.Timestamp = time.Now().UTC()
	return r
}

func okPage(_ context.Context, c domain.PageCheck) domain.RunResult {
	r := domain.NewResult(c)
	r.Timestamp = time.Now().UTC()
	return r
}

func TestInspector_EmptyListIsNoop(t *testing.T) {
	sink := &recSink{}
	ev := &recEvents{}
	al := &recAlerts{}
	in := NewInspector(zap.NewNop(), staticChecks{}, sink, funcNetwork(okNetwork), funcPage(okPage), 2)
	in.Events = ev
	in.Alerts = al

	require.NoError(t, in.RunOnce(context.Background()))
	assert.Empty(t, sink.batches)
	assert.Empty(t, ev.got)
	assert.Empty(t, al.got)
}

func TestInspector_OneBatchNetworkThenPages(t *testing.T) {
	list := domain.CheckList{
		Network: []domain.NetworkCheck{
			{ID: "n1", Name: "a", URL: "https://a"},
			{ID: "n2", Name: "b", URL: "https://b"},
			{ID: "n3", Name: "c", URL: "https://c"},
		},
		Page: []domain.PageCheck{
			{ID: "p1", Name: "home", URL: "https://home"},
			{ID: "p2", Name: "docs", URL: "https://docs"},
		},
	}
	sink := &recSink{}
	ev := &recEvents{}
	al := &recAlerts{}
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, sink, funcNetwork(okNetwork), funcPage(okPage), 2)
	in.Events = ev
	in.Alerts = al

	require.NoError(t, in.RunOnce(context.Background()))

	require.Len(t, sink.batches, 1)
	ids := []domain.CheckID{}
	for _, r := range sink.batches[0] {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []domain.CheckID{"n1", "n2", "n3", "p1", "p2"}, ids)
	require.Len(t, al.got, 1)
	assert.Len(t, al.got[0], 5)
	assert.Equal(t, []events.Type{events.ResultsUpdate}, ev.types())
	assert.Equal(t, 5, ev.got[0].Count)
}

func TestInspector_PanicBecomesErrorResult(t *testing.T) {
	list := domain.CheckList{
		Network: []domain.NetworkCheck{{ID: "n1", Name: "a", URL: "https://a"}},
		Page:    []domain.PageCheck{{ID: "p1", Name: "home", URL: "https://home"}},
	}
	sink := &recSink{}
	boom := funcNetwork(func(context.Context, domain.NetworkCheck) domain.RunResult { panic("kaboom") })
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, sink, boom, funcPage(okPage), 1)

	require.NoError(t, in.RunOnce(context.Background()))

	require.Len(t, sink.batches[0], 2)
	got := sink.batches[0][0]
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage(), "kaboom")
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, domain.StatusSuccess, sink.batches[0][1].Status)
}

func TestInspector_RestoresStatusErrorPairing(t *testing.T) {
	list := domain.CheckList{Network: []domain.NetworkCheck{{ID: "n1", Name: "a", URL: "https://a"}}}
	sink := &recSink{}
	bad := funcNetwork(func(_ context.Context, c domain.NetworkCheck) domain.RunResult {
		return domain.RunResult{Status: domain.StatusError}
	})
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, sink, bad, nil, 1)

	require.NoError(t, in.RunOnce(context.Background()))

	r := sink.batches[0][0]
	require.NotNil(t, r.Error)
	assert.Equal(t, domain.GenericFailure, *r.Error)
	assert.Equal(t, domain.CheckID("n1"), r.ID)
	assert.Equal(t, "https://a", r.URL)
}

func TestInspector_MissingPageProber(t *testing.T) {
	list := domain.CheckList{Page: []domain.PageCheck{{ID: "p1", Name: "home", URL: "https://home"}}}
	sink := &recSink{}
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, sink, nil, nil, 1)

	require.NoError(t, in.RunOnce(context.Background()))
	r := sink.batches[0][0]
	assert.True(t, r.Failed())
	require.NotNil(t, r.Page)
	assert.NotEmpty(t, r.Page.Diagnostics.Issues)
}

func TestInspector_ChecksErrorSkipsBatch(t *testing.T) {
	sink := &recSink{}
	in := NewInspector(zap.NewNop(), staticChecks{err: errors.New("db down")}, sink, funcNetwork(okNetwork), nil, 1)

	err := in.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.batches)
}

func TestInspector_AppendErrorStillAlerts(t *testing.T) {
	list := domain.CheckList{Network: []domain.NetworkCheck{{ID: "n1", Name: "a", URL: "https://a"}}}
	sink := &recSink{err: errors.New("disk full")}
	al := &recAlerts{}
	ev := &recEvents{}
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, sink, funcNetwork(okNetwork), nil, 1)
	in.Alerts = al
	in.Events = ev

	require.Error(t, in.RunOnce(context.Background()))
	assert.Len(t, al.got, 1)
	assert.Empty(t, ev.got)
}

func TestInspector_PagesNeverOverlap(t *testing.T) {
	list := domain.CheckList{Page: []domain.PageCheck{
		{ID: "p1", Name: "a", URL: "https://a"},
		{ID: "p2", Name: "b", URL: "https://b"},
	}}
	var active, peak atomic.Int32
	page := funcPage(func(ctx context.Context, c domain.PageCheck) domain.RunResult {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return okPage(ctx, c)
	})
	in := NewInspector(zap.NewNop(), staticChecks{list: list}, &recSink{}, nil, page, 4)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = in.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestInspector_NetworkConcurrencyBounded(t *testing.T) {
	var checks []domain.NetworkCheck
	for _, id := range []domain.CheckID{"1", "2", "3", "4", "5", "6"} {
		checks = append(checks, domain.NetworkCheck{ID: id, Name: string(id), URL: "https://x"})
	}
	var active, peak atomic.Int32
	network := funcNetwork(func(ctx context.Context, c domain.NetworkCheck) domain.RunResult {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return okNetwork(ctx, c)
	})
	sink := &recSink{}
	in := NewInspector(zap.NewNop(), staticChecks{list: domain.CheckList{Network: checks}}, sink, network, nil, 2)

	require.NoError(t, in.RunOnce(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, sink.batches[0], 6)
}
