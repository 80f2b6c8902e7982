package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles        prometheus.Histogram
	signals       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var (
	once     sync.Once
	recorder *Recorder
)

// New returns the process-wide recorder, registering it on first use.
func New() *Recorder {
	once.Do(func() {
		recorder = newRecorder()
		prometheus.MustRegister(
			recorder.cycles,
			recorder.signals,
			recorder.notifications,
			recorder.publishes,
			recorder.errorsTotal,
			recorder.latency,
		)
	})
	return recorder
}

func newRecorder() *Recorder {
	return &Recorder{
		cycles: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_cycle_duration_seconds",
				Help:    "Duration of a full evaluation cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_signal_changes_total",
				Help: "Signal transitions applied to the aggregate state",
			},
			[]string{"name", "timeframe", "change"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_notifications_total",
				Help: "Alert decisions by channel and result",
			},
			[]string{"channel", "result"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_snapshot_publish_total",
				Help: "Snapshot publish attempts by transport",
			},
			[]string{"transport", "status"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCycle(seconds float64) {
	r.cycles.Observe(seconds)
}

func (r *Recorder) RecordSignal(name, tf, change string) {
	r.signals.WithLabelValues(name, tf, change).Inc()
}

func (r *Recorder) RecordNotification(channel, result string) {
	r.notifications.WithLabelValues(channel, result).Inc()
}

func (r *Recorder) RecordPublish(transport string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.publishes.WithLabelValues(transport, status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards everything. Used by tests and when metrics are disabled.
type Noop struct{}

func (Noop) RecordCycle(float64) {}
func (Noop) RecordSignal(string, string, string) {}
func (Noop) RecordNotification(string, string) {}
func (Noop) RecordPublish(string, error) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLatency(string, float64) {}
