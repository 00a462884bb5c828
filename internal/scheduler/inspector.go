package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/events"
	"github.com/hamed0406/webinspector/internal/obs"
	"github.com/hamed0406/webinspector/internal/probe"
)

type CheckSource interface {
	Checks(ctx context.Context) (domain.CheckList, error)
}

type ResultSink interface {
	Append(ctx context.Context, batch []domain.RunResult) error
}

type AlertEvaluator interface {
	Evaluate(ctx context.Context, results []domain.RunResult)
}

const DefaultConcurrency = 8

// Inspector runs one batch: every network check concurrently, then every
// page check one at a time, then a single append to the result log.
type Inspector struct {
	Logger      *zap.Logger
	Checks      CheckSource
	Results     ResultSink
	Network     probe.NetworkProber
	Page        probe.PageProber
	Alerts      AlertEvaluator
	Events      events.Publisher
	Metrics     *obs.Metrics
	Concurrency int

	// pageMu keeps page probes serial across overlapping batches.
	pageMu sync.Mutex
	now    func() time.Time
}

func NewInspector(
	logger *zap.Logger,
	checks CheckSource,
	results ResultSink,
	network probe.NetworkProber,
	page probe.PageProber,
	concurrency int,
) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Inspector{
		Logger:      logger,
		Checks:      checks,
		Results:     results,
		Network:     network,
		Page:        page,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

// RunOnce inspects the current check list. An empty list is a no-op. The
// returned error covers loading checks and persisting results; individual
// probe failures are recorded as error results instead.
func (in *Inspector) RunOnce(ctx context.Context) error {
	ctx, span, log := obs.StartSpan(ctx, in.Logger, "inspection.run")
	defer span.End()
	start := in.now()

	list, err := in.Checks.Checks(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load checks")
		log.Warn("inspection_checks_error", zap.Error(err))
		return fmt.Errorf("load checks: %w", err)
	}
	if list.Empty() {
		log.Debug("inspection_no_checks")
		return nil
	}
	span.SetAttributes(
		attribute.Int("checks.network", len(list.Network)),
		attribute.Int("checks.page", len(list.Page)),
	)

	batch := make([]domain.RunResult, 0, len(list.Network)+len(list.Page))
	batch = append(batch, in.runNetwork(ctx, list.Network)...)
	batch = append(batch, in.runPages(ctx, list.Page)...)

	var runErr error
	if err := in.Results.Append(ctx, batch); err != nil {
		span.RecordError(err)
		log.Error("inspection_append_error", zap.Int("results", len(batch)), zap.Error(err))
		runErr = fmt.Errorf("append results: %w", err)
	} else if in.Events != nil {
		in.Events.Publish(ctx, events.ResultsAppended(len(batch), in.now()))
	}

	if in.Alerts != nil {
		in.Alerts.Evaluate(ctx, batch)
	}

	failed := 0
	for _, r := range batch {
		if r.Failed() {
			failed++
		}
	}
	elapsed := in.now().Sub(start)
	in.Metrics.ObserveBatch(elapsed)
	log.Info("inspection_batch_done",
		zap.Int("network", len(list.Network)),
		zap.Int("page", len(list.Page)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)
	return runErr
}

func (in *Inspector) runNetwork(ctx context.Context, checks []domain.NetworkCheck) []domain.RunResult {
	out := make([]domain.RunResult, len(checks))
	var g errgroup.Group
	g.SetLimit(in.Concurrency)
	for i, c := range checks {
		g.Go(func() error {
			out[i] = in.probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (in *Inspector) runPages(ctx context.Context, checks []domain.PageCheck) []domain.RunResult {
	if len(checks) == 0 {
		return nil
	}
	in.pageMu.Lock()
	defer in.pageMu.Unlock()

	out := make([]domain.RunResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, in.probe(ctx, c))
	}
	return out
}

// probe runs a single check and always yields a result, even when the
// prober panics.
func (in *Inspector) probe(ctx context.Context, spec domain.CheckSpec) (res domain.RunResult) {
	ctx, span, log := obs.StartSpan(ctx, in.Logger, "probe."+string(spec.Kind()),
		attribute.String("check.id", string(spec.CheckID())),
		attribute.String("check.url", spec.CheckURL()),
	)
	start := in.now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("inspection_probe_panic",
				zap.String("check_id", string(spec.CheckID())),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			res = domain.ErrorResult(spec, fmt.Sprintf("probe panicked: %v", rec), in.now())
		}
		res = settle(spec, res, in.now())
		if res.Failed() {
			span.SetStatus(codes.Error, res.ErrorMessage())
		}
		span.End()
		in.Metrics.ObserveProbe(string(spec.Kind()), string(res.Status), in.now().Sub(start))
	}()

	switch c := spec.(type) {
	case domain.NetworkCheck:
		if in.Network == nil {
			return domain.ErrorResult(spec, "network probing is not configured", in.now())
		}
		return in.Network.Probe(ctx, c)
	case domain.PageCheck:
		if in.Page == nil {
			return domain.ErrorResult(spec, "page probing is not configured", in.now())
		}
		return in.Page.Probe(ctx, c)
	default:
		return domain.ErrorResult(spec, fmt.Sprintf("unsupported check kind %q", spec.Kind()), in.now())
	}
}

// settle fills identity fields from spec and restores the status/error
// pairing on whatever a prober returned.
func settle(spec domain.CheckSpec, r domain.RunResult, now time.Time) domain.RunResult {
	r.ID = spec.CheckID()
	r.Name = spec.CheckName()
	r.URL = spec.CheckURL()
	r.Kind = spec.Kind()
	switch {
	case r.Status == domain.StatusError:
		r.Fail(r.ErrorMessage())
	case r.Error != nil:
		r.Fail(*r.Error)
	default:
		r.Succeed()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now.UTC()
	}
	return r
}
