// Command inspectord runs the inspection engine and its console API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/config"
	"github.com/hamed0406/webinspector/internal/events"
	"github.com/hamed0406/webinspector/internal/httpapi"
	"github.com/hamed0406/webinspector/internal/logging"
	"github.com/hamed0406/webinspector/internal/notify"
	"github.com/hamed0406/webinspector/internal/obs"
	"github.com/hamed0406/webinspector/internal/probe"
	"github.com/hamed0406/webinspector/internal/repo"
	"github.com/hamed0406/webinspector/internal/results"
	"github.com/hamed0406/webinspector/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("WEBINSPECTOR_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(logging.Options{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Console: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tracing, err := obs.SetupTracing(ctx, cfg.OTEL)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	stores, err := openBackends(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("storage_close_failed", zap.Error(err))
		}
	}()

	settings := repo.NewSettings(stores.synced, cfg.Inspection.DefaultIntervalMinutes)
	if err := seedChecks(ctx, settings, cfg.Inspection.ChecksFile, logger); err != nil {
		return err
	}
	runState := repo.NewRunStateStore(stores.local)
	resultLog := results.New(stores.local, cfg.Inspection.MaxResults)

	httpProbe, err := probe.NewHTTPProbe(probe.HTTPConfig{
		Timeout:   cfg.Inspection.NetworkTimeout,
		UserAgent: cfg.Inspection.UserAgent,
		Cookies:   cfg.Inspection.Cookies,
	}, logger)
	if err != nil {
		return err
	}
	browser := probe.NewChromeBrowser(probe.ChromeConfig{
		ExecPath:  cfg.Browser.ExecPath,
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
		UserAgent: cfg.Inspection.UserAgent,
		Cookies:   cfg.Inspection.Cookies,
	}, logger)
	defer browser.Close()
	pageProbe := probe.NewPageProbe(browser, probe.PageConfig{
		LoadTimeout:    cfg.Inspection.PageTimeout,
		SettleDelay:    cfg.Inspection.SettleDelay,
		SnapshotSettle: cfg.Inspection.SnapshotSettle,
	}, logger)

	bus := events.NewBus(events.DefaultBuffer, metrics.EventDropped)
	publishers := events.Fanout{bus}
	if len(cfg.Events.KafkaBrokers) > 0 {
		sink := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
		defer sink.Close()
		publishers = append(publishers, sink)
	}

	var slack notify.Notifier
	if s := notify.NewSlack(cfg.Notify.SlackWebhook); s != nil {
		slack = notify.NewRetry(s, cfg.Notify.RetryAttempts, cfg.Notify.RetryBackoff, logger)
	}
	notifier := notify.Compact(notify.NewLog(logger), slack)

	inspector := scheduler.NewInspector(logger, settings, resultLog, httpProbe, pageProbe, cfg.Inspection.Concurrency)
	inspector.Alerts = scheduler.NewAlerter(notifier, logger, metrics)
	inspector.Events = publishers
	inspector.Metrics = metrics

	sched := scheduler.New(logger, inspector, runState, settings, publishers, scheduler.Config{Metrics: metrics})
	if err := sched.Restore(ctx); err != nil {
		return err
	}

	api := httpapi.NewServer(logger, sched, settings, resultLog, bus)
	api.Backends = map[string]string{
		"local":  cfg.Storage.Local.Driver,
		"synced": cfg.Storage.Synced.Driver,
		"events": eventsBackend(cfg.Events),
	}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RatePerMinute:  cfg.HTTP.RateRPM,
			RateBurst:      cfg.HTTP.RateBurst,
			Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting_down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := sched.Shutdown(sctx); err != nil {
		logger.Warn("scheduler_shutdown_failed", zap.Error(err))
	}
	return nil
}

// seedChecks loads the YAML catalogue into an empty synced scope.
func seedChecks(ctx context.Context, s *repo.Settings, path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	current, err := s.Checks(ctx)
	if err != nil {
		return err
	}
	if !current.Empty() {
		logger.Info("checks_seed_skipped", zap.String("reason", "catalogue not empty"))
		return nil
	}
	l, err := config.LoadChecksFile(path)
	if err != nil {
		return err
	}
	if _, err := s.SaveChecks(ctx, l); err != nil {
		return err
	}
	logger.Info("checks_seeded", zap.Int("network", len(l.Network)), zap.Int("page", len(l.Page)))
	return nil
}

func eventsBackend(c config.EventsConfig) string {
	if len(c.KafkaBrokers) > 0 {
		return "sse+kafka"
	}
	return "sse"
}
