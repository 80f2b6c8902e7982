package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of state API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by state API endpoint",
		},
		[]string{"endpoint"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "screener",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected snapshot stream clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, WSClients)
	})
}
