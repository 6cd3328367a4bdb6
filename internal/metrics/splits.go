package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SplitMetrics holds metrics for table split refreshes.
type SplitMetrics struct {
	// RefreshLatency tracks refresh pass latencies by status.
	RefreshLatency *prometheus.HistogramVec

	// RefreshFailures counts passes that could not list split records.
	RefreshFailures prometheus.Counter

	// InvalidRecords counts split records skipped as undecodable or invalid.
	InvalidRecords prometheus.Counter

	// Tables is the number of tables in the current snapshot.
	Tables prometheus.Gauge
}

// NewSplitMetrics creates split metrics registered with the default registry.
func NewSplitMetrics() *SplitMetrics {
	return NewSplitMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewSplitMetricsWithRegistry creates split metrics registered with reg.
func NewSplitMetricsWithRegistry(reg prometheus.Registerer) *SplitMetrics {
	factory := promauto.With(reg)
	return &SplitMetrics{
		RefreshLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "splits",
				Name:      "refresh_latency_seconds",
				Help:      "Split catalog refresh latency in seconds, by status.",
				Buckets:   DefaultStoreLatencyBuckets,
			},
			[]string{"status"},
		),
		RefreshFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "splits",
				Name:      "refresh_failures_total",
				Help:      "Total number of split refreshes that kept the previous snapshot.",
			},
		),
		InvalidRecords: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "splits",
				Name:      "invalid_records_total",
				Help:      "Total number of split records skipped during refresh.",
			},
		),
		Tables: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "splits",
				Name:      "tables",
				Help:      "Number of tables in the current split snapshot.",
			},
		),
	}
}

// RecordRefresh records a refresh pass. It implements
// topology.RefreshRecorder.
func (m *SplitMetrics) RecordRefresh(durationSeconds float64, success bool, tables int) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	} else {
		m.RefreshFailures.Inc()
	}
	m.RefreshLatency.WithLabelValues(status).Observe(durationSeconds)
	m.Tables.Set(float64(tables))
}

// RecordInvalidRecord counts a skipped split record.
func (m *SplitMetrics) RecordInvalidRecord() {
	m.InvalidRecords.Inc()
}
