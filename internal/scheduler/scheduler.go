// Package scheduler owns the periodic inspection lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/events"
	"github.com/hamed0406/webinspector/internal/obs"
)

var (
	ErrInvalidInterval = errors.New("interval must be at least one minute")
	ErrClosed          = errors.New("scheduler is shut down")
)

type Runner interface {
	RunOnce(ctx context.Context) error
}

type StateStore interface {
	IsRunning(ctx context.Context) (bool, error)
	SetRunning(ctx context.Context, running bool) error
}

type SettingsStore interface {
	IntervalMinutes(ctx context.Context) (int, error)
	SetIntervalMinutes(ctx context.Context, minutes int) error
	AutoStart(ctx context.Context) (bool, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

type Config struct {
	// Unit is the length of one interval "minute". Zero means time.Minute.
	Unit      time.Duration
	NewTicker TickerFunc
	Metrics   *obs.Metrics
}

// Scheduler arms at most one periodic timer at a time. Lifecycle calls are
// serialized; inspection runs happen on background goroutines.
type Scheduler struct {
	log      *zap.Logger
	runner   Runner
	state    StateStore
	settings SettingsStore
	events   events.Publisher
	metrics  *obs.Metrics
	unit     time.Duration
	ticker   TickerFunc

	mu       sync.Mutex
	running  bool
	interval int
	stop     chan struct{}
	closed   bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log *zap.Logger, runner Runner, state StateStore, settings SettingsStore, pub events.Publisher, cfg Config) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Unit <= 0 {
		cfg.Unit = time.Minute
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewStdTicker
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:      log.With(zap.String("component", "scheduler")),
		runner:   runner,
		state:    state,
		settings: settings,
		events:   pub,
		metrics:  cfg.Metrics,
		unit:     cfg.Unit,
		ticker:   cfg.NewTicker,
		interval: domain.DefaultIntervalMinutes,
		runCtx:   ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Status() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scheduler) statusLocked() domain.RunState {
	return domain.RunState{IsRunning: s.running, IntervalMinutes: s.interval}
}

// Restore reloads persisted state at launch. A persisted running flag
// re-arms the timer without an immediate run; otherwise auto-start, if
// enabled, behaves like Start.
func (s *Scheduler) Restore(ctx context.Context) error {
	interval, err := s.settings.IntervalMinutes(ctx)
	if err != nil {
		return fmt.Errorf("load interval: %w", err)
	}
	running, err := s.state.IsRunning(ctx)
	if err != nil {
		return fmt.Errorf("load running state: %w", err)
	}

	s.mu.Lock()
	if interval >= 1 {
		s.interval = interval
	}
	if running && !s.running && !s.closed {
		s.running = true
		s.arm()
		st := s.statusLocked()
		s.mu.Unlock()
		s.metrics.SetRunning(true)
		s.log.Info("scheduler_resumed", zap.Int("interval_minutes", st.IntervalMinutes))
		return nil
	}
	s.mu.Unlock()
	if running {
		return nil
	}

	auto, err := s.settings.AutoStart(ctx)
	if err != nil {
		return fmt.Errorf("load auto start: %w", err)
	}
	if auto {
		s.log.Info("scheduler_autostart")
		return s.Start(ctx)
	}
	return nil
}

// Start persists the running flag, arms the timer and fires one immediate
// run. Starting a running scheduler does nothing. If persisting fails the
// scheduler stays stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if err := s.state.SetRunning(ctx, true); err != nil {
		s.mu.Unlock()
		s.log.Warn("scheduler_start_persist_failed", zap.Error(err))
		return fmt.Errorf("persist running state: %w", err)
	}
	s.running = true
	s.arm()
	st := s.statusLocked()
	s.spawnRun("start")
	s.mu.Unlock()

	s.metrics.SetRunning(true)
	s.publish(ctx, st)
	s.log.Info("scheduler_started", zap.Int("interval_minutes", st.IntervalMinutes))
	return nil
}

// Stop persists the stopped flag and disarms the timer. A run already in
// progress completes.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if err := s.state.SetRunning(ctx, false); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist running state: %w", err)
	}
	s.running = false
	s.disarm()
	st := s.statusLocked()
	s.mu.Unlock()

	s.metrics.SetRunning(false)
	s.publish(ctx, st)
	s.log.Info("scheduler_stopped")
	return nil
}

// UpdateInterval persists a new period and re-arms a running timer with it.
// No run is triggered.
func (s *Scheduler) UpdateInterval(ctx context.Context, minutes int) error {
	if minutes < 1 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	if err := s.settings.SetIntervalMinutes(ctx, minutes); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist interval: %w", err)
	}
	s.interval = minutes
	if s.running && !s.closed {
		s.disarm()
		s.arm()
	}
	st := s.statusLocked()
	s.mu.Unlock()

	s.publish(ctx, st)
	s.log.Info("scheduler_interval_updated", zap.Int("interval_minutes", minutes))
	return nil
}

// Trigger starts an inspection now, independent of the timer.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.spawnRun("manual")
	return nil
}

// Shutdown disarms the timer without touching the persisted running flag and
// waits for in-flight runs. When ctx expires first, runs are canceled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.disarm()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// arm and disarm require s.mu.
func (s *Scheduler) arm() {
	t := s.ticker(time.Duration(s.interval) * s.unit)
	stop := make(chan struct{})
	s.stop = stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.runCtx.Done():
				return
			case <-t.C():
				s.run("timer")
			}
		}
	}()
}

func (s *Scheduler) disarm() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// spawnRun requires s.mu.
func (s *Scheduler) spawnRun(trigger string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(trigger)
	}()
}

func (s *Scheduler) run(trigger string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduler_run_panic", zap.String("trigger", trigger), zap.Any("panic", rec))
		}
	}()
	if err := s.runner.RunOnce(s.runCtx); err != nil {
		s.log.Warn("scheduler_run_failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

func (s *Scheduler) publish(ctx context.Context, st domain.RunState) {
	if s.events != nil {
		s.events.Publish(ctx, events.StatusChanged(st, time.Now()))
	}
}
