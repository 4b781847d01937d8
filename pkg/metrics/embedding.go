package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initEmbeddingMetrics initializes embedding provider metrics.
func (m *Manager) initEmbeddingMetrics(cfg Config) {
	m.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_embedding_requests_total",
			Help: "Total number of embedding backend calls by status",
		},
		[]string{"status"},
	)

	m.embeddingRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recall_embedding_retries_total",
			Help: "Total number of embedding retry attempts",
		},
	)

	m.embeddingCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_embedding_cache_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	m.embeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recall_embedding_duration_seconds",
			Help:    "Embedding backend call duration in seconds, retries included",
			Buckets: cfg.EmbeddingDurationBuckets,
		},
	)

	m.registry.MustRegister(m.embeddingRequests)
	m.registry.MustRegister(m.embeddingRetries)
	m.registry.MustRegister(m.embeddingCache)
	m.registry.MustRegister(m.embeddingDuration)
}

// RecordEmbedding records one embedding call. It satisfies embedding.Recorder.
func (m *Manager) RecordEmbedding(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.embeddingRequests.WithLabelValues(status).Inc()
	m.embeddingDuration.Observe(duration.Seconds())
}

// RecordEmbeddingRetry records a retry attempt.
func (m *Manager) RecordEmbeddingRetry() {
	if !m.enabled {
		return
	}
	m.embeddingRetries.Inc()
}

// RecordEmbeddingCache records a cache lookup result ("hit", "miss" or "error").
func (m *Manager) RecordEmbeddingCache(result string) {
	if !m.enabled {
		return
	}
	m.embeddingCache.WithLabelValues(result).Inc()
}
