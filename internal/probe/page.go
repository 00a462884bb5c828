package probe

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
)

//go:embed scripts/diagnostics.js
var diagnosticsScript string

//go:embed scripts/basic.js
var basicInfoScript string

const untitled = "(no title)"

// Browser opens isolated rendering contexts.
type Browser interface {
	// Open creates a new background (non-focused) context on a blank page.
	Open(ctx context.Context) (Tab, error)
}

// Tab is one rendering context. Close must be safe to call after ctx
// cancellation.
type Tab interface {
	// Navigate loads url and returns once the page signals load completion.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page and returns its JSON-encoded value.
	Evaluate(ctx context.Context, script string) ([]byte, error)
	Activate(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// PageState is a step of one page probe.
type PageState int

const (
	StateCreated PageState = iota
	StateLoading
	StateLoaded
	StateSettling
	StateCollecting
	StateClosingDone
	StateTimedOut
)

func (s PageState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateSettling:
		return "settling"
	case StateCollecting:
		return "collecting"
	case StateClosingDone:
		return "closing_done"
	case StateTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// NoDelay disables SettleDelay or SnapshotSettle; a zero value means the
// default.
const NoDelay time.Duration = -1

// PageConfig zero values take DefaultPageConfig.
type PageConfig struct {
	// LoadTimeout bounds everything from opening the context to the end of
	// diagnostics collection.
	LoadTimeout     time.Duration
	SettleDelay     time.Duration
	SnapshotSettle  time.Duration
	SnapshotTimeout time.Duration
}

func DefaultPageConfig() PageConfig {
	return PageConfig{
		LoadTimeout:     30 * time.Second,
		SettleDelay:     3 * time.Second,
		SnapshotSettle:  time.Second,
		SnapshotTimeout: 10 * time.Second,
	}
}

type PageProbe struct {
	browser Browser
	cfg     PageConfig
	log     *zap.Logger
	now     func() time.Time

	// OnTransition, when set, observes every state change.
	OnTransition func(c domain.PageCheck, from, to PageState)
}

func NewPageProbe(b Browser, cfg PageConfig, log *zap.Logger) *PageProbe {
	def := DefaultPageConfig()
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = def.LoadTimeout
	}
	cfg.SettleDelay = delayOrDefault(cfg.SettleDelay, def.SettleDelay)
	cfg.SnapshotSettle = delayOrDefault(cfg.SnapshotSettle, def.SnapshotSettle)
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = def.SnapshotTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PageProbe{browser: b, cfg: cfg, log: log, now: time.Now}
}

func delayOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

// Config reports the effective settings after defaults.
func (p *PageProbe) Config() PageConfig { return p.cfg }

// pageRun is the state of a single invocation.
type pageRun struct {
	p     *PageProbe
	check domain.PageCheck
	state PageState
	start time.Time

	tab       Tab
	closeOnce sync.Once
}

func (r *pageRun) to(next PageState) {
	prev := r.state
	r.state = next
	r.p.log.Debug("probe_page_state",
		zap.String("check_id", string(r.check.ID)),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	if r.p.OnTransition != nil {
		r.p.OnTransition(r.check, prev, next)
	}
}

// release closes the rendering context at most once. Close failures are
// logged and swallowed.
func (r *pageRun) release() {
	if r.tab == nil {
		return
	}
	r.closeOnce.Do(func() {
		if err := r.tab.Close(); err != nil {
			r.p.log.Warn("probe_page_close_failed",
				zap.String("check_id", string(r.check.ID)),
				zap.Error(err),
			)
		}
	})
}

func (p *PageProbe) Probe(ctx context.Context, c domain.PageCheck) domain.RunResult {
	run := &pageRun{p: p, check: c, state: StateCreated, start: p.now()}
	defer run.release()

	dctx, cancel := context.WithTimeout(ctx, p.cfg.LoadTimeout)
	defer cancel()

	tab, err := p.browser.Open(dctx)
	if err != nil {
		if dctx.Err() != nil {
			return p.abort(run, dctx)
		}
		return p.finish(run, domain.FailedDiagnostics(c.URL, p.now(), "open rendering context: "+err.Error()), nil)
	}
	run.tab = tab

	run.to(StateLoading)
	if err := tab.Navigate(dctx, c.URL); err != nil {
		if dctx.Err() != nil {
			return p.abort(run, dctx)
		}
		return p.finish(run, domain.FailedDiagnostics(c.URL, p.now(), "page load failed: "+err.Error()), nil)
	}
	run.to(StateLoaded)

	run.to(StateSettling)
	if !sleepCtx(dctx, p.cfg.SettleDelay) {
		return p.abort(run, dctx)
	}

	run.to(StateCollecting)
	diag := p.collect(dctx, tab, c)

	var snap []byte
	if c.Screenshot {
		snap = p.snapshot(ctx, tab, c)
	}
	return p.finish(run, diag, snap)
}

// abort handles the deadline (or caller cancellation) before collection.
func (p *PageProbe) abort(run *pageRun, dctx context.Context) domain.RunResult {
	msg := MsgPageTimeout
	if !errors.Is(dctx.Err(), context.DeadlineExceeded) {
		msg = "page probe canceled"
	}
	run.to(StateTimedOut)
	run.release()
	p.log.Info("probe_page_timeout",
		zap.String("check_id", string(run.check.ID)),
		zap.String("url", run.check.URL),
		zap.String("reason", msg),
	)
	res := domain.NewResult(run.check)
	res.Page = &domain.PagePayload{Diagnostics: domain.FailedDiagnostics(run.check.URL, p.now(), msg)}
	res.Fail(msg)
	res.Finish(run.start, p.now())
	return res
}

func (p *PageProbe) finish(run *pageRun, diag domain.PageDiagnostics, snap []byte) domain.RunResult {
	if run.tab != nil {
		run.release()
		run.to(StateClosingDone)
	}
	diag = diag.Normalize()
	res := domain.NewResult(run.check)
	res.Page = &domain.PagePayload{Diagnostics: diag, Snapshot: snap}
	if !diag.Healthy() {
		res.Fail(diag.Summary())
	}
	res.Finish(run.start, p.now())
	return res
}

// collect runs the full diagnostics routine, falling back to URL and title
// only, and finally to synthesized diagnostics describing both failures.
func (p *PageProbe) collect(ctx context.Context, tab Tab, c domain.PageCheck) domain.PageDiagnostics {
	raw, err := tab.Evaluate(ctx, diagnosticsScript)
	if err == nil {
		var d domain.PageDiagnostics
		if d, err = p.decodeDiagnostics(raw); err == nil {
			return d
		}
	}
	reason := "diagnostics script failed: " + err.Error()
	p.log.Debug("probe_page_diagnostics_failed", zap.String("check_id", string(c.ID)), zap.Error(err))

	raw, berr := tab.Evaluate(ctx, basicInfoScript)
	if berr == nil {
		var d domain.PageDiagnostics
		if d, berr = p.decodeDiagnostics(raw); berr == nil {
			d.Issues = []string{reason}
			return d
		}
	}
	return domain.FailedDiagnostics(c.URL, p.now(), reason, "basic page info failed: "+berr.Error())
}

type scriptDiagnostics struct {
	Issues []string `json:"issues"`
	Timing struct {
		LoadTime    float64 `json:"loadTime"`
		DOMReady    float64 `json:"domReady"`
		NetworkTime float64 `json:"networkTime"`
	} `json:"timing"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (p *PageProbe) decodeDiagnostics(raw []byte) (domain.PageDiagnostics, error) {
	var sd *scriptDiagnostics
	if err := json.Unmarshal(raw, &sd); err != nil {
		return domain.PageDiagnostics{}, fmt.Errorf("decode diagnostics: %w", err)
	}
	if sd == nil {
		return domain.PageDiagnostics{}, errors.New("diagnostics returned no data")
	}
	title := strings.TrimSpace(sd.Title)
	if title == "" {
		title = untitled
	}
	return domain.PageDiagnostics{
		Issues: sd.Issues,
		Timing: domain.Timing{
			LoadMS:     int64(sd.Timing.LoadTime),
			DOMReadyMS: int64(sd.Timing.DOMReady),
			NetworkMS:  int64(sd.Timing.NetworkTime),
		},
		URL:       sd.URL,
		Title:     title,
		Timestamp: p.now().UTC(),
	}.Normalize(), nil
}

// snapshot is best effort: any failure leaves the snapshot empty.
func (p *PageProbe) snapshot(parent context.Context, tab Tab, c domain.PageCheck) []byte {
	ctx, cancel := context.WithTimeout(parent, p.cfg.SnapshotTimeout)
	defer cancel()
	if err := tab.Activate(ctx); err != nil {
		p.log.Debug("probe_page_activate_failed", zap.String("check_id", string(c.ID)), zap.Error(err))
	}
	if !sleepCtx(ctx, p.cfg.SnapshotSettle) {
		return nil
	}
	img, err := tab.Screenshot(ctx)
	if err != nil {
		p.log.Debug("probe_page_snapshot_failed", zap.String("check_id", string(c.ID)), zap.Error(err))
		return nil
	}
	return img
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
