package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the inspection engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	batches       prometheus.Counter
	batchDuration prometheus.Histogram
	running       prometheus.Gauge
	notifications *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_probes_total",
			Help: "Probes executed by kind and status.",
		}, []string{"kind", "status"}),
		probeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inspector_probe_duration_seconds",
			Help:    "Probe wall-clock duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		batches: f.NewCounter(prometheus.CounterOpts{
			Name: "inspector_batches_total",
			Help: "Completed inspection batches.",
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "inspector_batch_duration_seconds",
			Help:    "Duration of a whole inspection batch.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_scheduler_running",
			Help: "1 while the periodic scheduler is armed.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_notifications_total",
			Help: "Alert notifications by outcome.",
		}, []string{"result"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "inspector_events_dropped_total",
			Help: "Console events dropped because a subscriber was not keeping up.",
		}),
	}
}

func (m *Metrics) ObserveProbe(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(kind, status).Inc()
	m.probeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.batchDuration.Observe(d.Seconds())
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

func (m *Metrics) Notification(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.notifications.WithLabelValues("sent").Inc()
	} else {
		m.notifications.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
