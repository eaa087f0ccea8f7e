package miner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// total candidate keys covered by completed invocations
	prometheusKeysChecked prometheus.Counter
	// matches finalized, including ones whose record failed to persist
	prometheusMatches prometheus.Counter
	// completed kernel invocations
	prometheusInvocations prometheus.Counter
	// records or hidden-service exports that could not be written
	prometheusPersistErrors prometheus.Counter
	// aggregate rate at the last progress report
	prometheusKeysPerSecond prometheus.Gauge
	// wall time of one kernel invocation
	prometheusInvocationDuration prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

// initPrometheusMetrics registers the miner metrics with the default registry.
// Registering twice panics, so this is guarded by sync.Once.
func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusKeysChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "onion_miner",
			Name:      "keys_checked_total",
			Help:      "Number of candidate keys tested",
		},
	)

	prometheusMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "onion_miner",
			Name:      "matches_total",
			Help:      "Number of matching onion addresses found",
		},
	)

	prometheusInvocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "onion_miner",
			Name:      "invocations_total",
			Help:      "Number of completed kernel invocations",
		},
	)

	prometheusPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "onion_miner",
			Name:      "persist_errors_total",
			Help:      "Number of matches whose record could not be written",
		},
	)

	prometheusKeysPerSecond = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "onion_miner",
			Name:      "keys_per_second",
			Help:      "Aggregate key rate since the run started",
		},
	)

	prometheusInvocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "onion_miner",
			Name:      "invocation_duration_seconds",
			Help:      "Duration of one kernel invocation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
	)
}
