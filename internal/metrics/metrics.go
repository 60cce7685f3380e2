// Package metrics exposes Prometheus collectors for the poll loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by the STH client.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeMalformed      = "malformed"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sensors_dashboard",
			Subsystem: "sth",
			Name:      "fetches_total",
			Help:      "STH-Comet queries by signal and outcome.",
		},
		[]string{"signal", "outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sensors_dashboard",
			Subsystem: "sth",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of STH-Comet queries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"signal"},
	)

	bufferPoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sensors_dashboard",
			Subsystem: "buffer",
			Name:      "points",
			Help:      "Readings currently held per signal.",
		},
		[]string{"signal"},
	)

	appended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sensors_dashboard",
			Subsystem: "buffer",
			Name:      "appended_total",
			Help:      "Readings appended per signal.",
		},
		[]string{"signal"},
	)

	pollCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sensors_dashboard",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		},
	)
)

func init() {
	Registry.MustRegister(
		fetches,
		fetchDuration,
		bufferPoints,
		appended,
		pollCycles,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one STH query.
func ObserveFetch(signal, outcome string, d time.Duration) {
	fetches.WithLabelValues(signal, outcome).Inc()
	fetchDuration.WithLabelValues(signal).Observe(d.Seconds())
}

// RecordAppend records n appended readings and the resulting buffer size.
func RecordAppend(signal string, n, size int) {
	if n > 0 {
		appended.WithLabelValues(signal).Add(float64(n))
	}
	bufferPoints.WithLabelValues(signal).Set(float64(size))
}

// IncPollCycle counts a completed poll cycle.
func IncPollCycle() {
	pollCycles.Inc()
}
