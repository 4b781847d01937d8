package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initSearchMetrics initializes retrieval and retention metrics.
func (m *Manager) initSearchMetrics(cfg Config) {
	m.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_search_requests_total",
			Help: "Total number of retrieval requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recall_search_duration_seconds",
			Help:    "Retrieval latency in seconds",
			Buckets: cfg.SearchDurationBuckets,
		},
		[]string{"operation"},
	)

	m.searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recall_search_results",
			Help:    "Number of memories returned per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	m.registry.MustRegister(m.searchRequests)
	m.registry.MustRegister(m.searchDuration)
	m.registry.MustRegister(m.searchResults)
}

func (m *Manager) initRetentionMetrics() {
	m.retentionPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recall_retention_pruned_total",
			Help: "Total number of memories removed by retention sweeps",
		},
	)

	m.retentionSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_retention_sweeps_total",
			Help: "Total number of retention sweeps by status",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.retentionPruned)
	m.registry.MustRegister(m.retentionSweeps)
}

// RecordSearch records one retrieval operation. It satisfies memory.Recorder.
func (m *Manager) RecordSearch(operation, status string, duration time.Duration, results int) {
	if !m.enabled {
		return
	}
	m.searchRequests.WithLabelValues(operation, status).Inc()
	m.searchDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if status == "success" {
		m.searchResults.Observe(float64(results))
	}
}

// RecordPruned records one retention sweep. It satisfies memory.Recorder.
func (m *Manager) RecordPruned(status string, count int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.retentionSweeps.WithLabelValues(status).Inc()
	if count > 0 {
		m.retentionPruned.Add(float64(count))
	}
}
