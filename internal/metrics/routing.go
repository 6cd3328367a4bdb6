package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RoutingMetrics holds metrics for query plan construction.
type RoutingMetrics struct {
	// PlansTotal counts query plans by path (partition, fallback).
	PlansTotal *prometheus.CounterVec

	// UnroutableTotal counts statements whose bucket could not be computed,
	// by reason.
	UnroutableTotal *prometheus.CounterVec

	// BucketDuration tracks the time to compute a bucket from bound values.
	BucketDuration prometheus.Histogram
}

// DefaultBucketDurationBuckets span microseconds: the computation does no I/O.
var DefaultBucketDurationBuckets = []float64{
	0.000001, // 1µs
	0.0000025,
	0.000005,
	0.00001, // 10µs
	0.000025,
	0.00005,
	0.0001, // 100µs
	0.0005,
	0.001, // 1ms
}

// NewRoutingMetrics creates routing metrics registered with the default
// registry.
func NewRoutingMetrics() *RoutingMetrics {
	return NewRoutingMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewRoutingMetricsWithRegistry creates routing metrics registered with reg.
func NewRoutingMetricsWithRegistry(reg prometheus.Registerer) *RoutingMetrics {
	factory := promauto.With(reg)
	return &RoutingMetrics{
		PlansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routing",
				Name:      "plans_total",
				Help:      "Total number of query plans, by path (partition or fallback).",
			},
			[]string{"path"},
		),
		UnroutableTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routing",
				Name:      "unroutable_total",
				Help:      "Total number of statements planned without a partition key, by reason.",
			},
			[]string{"reason"},
		),
		BucketDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "routing",
				Name:      "bucket_seconds",
				Help:      "Time to compute a partition bucket from bound values, in seconds.",
				Buckets:   DefaultBucketDurationBuckets,
			},
		),
	}
}

// RecordPlan counts a plan built along path.
func (m *RoutingMetrics) RecordPlan(path string) {
	m.PlansTotal.WithLabelValues(path).Inc()
}

// RecordUnroutable counts a statement that could not be routed.
func (m *RoutingMetrics) RecordUnroutable(reason string) {
	m.UnroutableTotal.WithLabelValues(reason).Inc()
}

// RecordBucketDuration observes one bucket computation.
func (m *RoutingMetrics) RecordBucketDuration(seconds float64) {
	m.BucketDuration.Observe(seconds)
}
