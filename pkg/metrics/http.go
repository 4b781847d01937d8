package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

func (m *Manager) initHTTPMetrics(cfg Config) {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_http_requests_total",
			Help: "API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recall_http_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: cfg.HTTPDurationBuckets,
		},
		[]string{"method", "route"},
	)

	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recall_http_requests_in_flight",
			Help: "API requests currently being served",
		},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpInFlight)
}

// RecordHTTPRequest records one API request. When ctx carries a sampled span
// its ids are attached to the latency sample as an exemplar.
func (m *Manager) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()

	obs := m.httpDuration.WithLabelValues(method, route)
	if labels, ok := traceExemplarLabels(ctx); ok {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(duration.Seconds(), labels)
			return
		}
	}
	obs.Observe(duration.Seconds())
}

func (m *Manager) IncInFlight() {
	if m.enabled {
		m.httpInFlight.Inc()
	}
}

func (m *Manager) DecInFlight() {
	if m.enabled {
		m.httpInFlight.Dec()
	}
}

func traceExemplarLabels(ctx context.Context) (prometheus.Labels, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil, false
	}
	return prometheus.Labels{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}, true
}
