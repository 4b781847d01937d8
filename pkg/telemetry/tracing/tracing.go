// Package tracing sets up the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/logger"
)

// InstrumentationName is the tracer name used by recall packages.
const InstrumentationName = "github.com/goclaw/recall"

// ServiceInfo describes the process in the trace resource.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
	// Storage and EmbeddingModel identify the configured backends.
	Storage        string
	EmbeddingModel string
}

func (s ServiceInfo) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.Name),
		semconv.ServiceVersion(s.Version),
	}
	optional := []struct{ key, value string }{
		{"deployment.environment.name", s.Environment},
		{"recall.storage", s.Storage},
		{"recall.embedding.model", s.EmbeddingModel},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, attribute.String(o.key, o.value))
		}
	}
	return attrs
}

// Tracer returns the recall tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// collector is where spans are shipped. An https endpoint turns on TLS;
// anything else, including a bare host:port, is plaintext gRPC.
type collector struct {
	host   string
	secure bool
}

func parseCollector(endpoint string) collector {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return collector{host: raw}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return collector{host: raw}
	}
	return collector{host: u.Host, secure: strings.EqualFold(u.Scheme, "https")}
}

// onExportFailure is swapped out in tests.
var onExportFailure = func(err error, c collector, spanCount int) {
	logger.Warn("dropping spans after export failure",
		"error", err,
		"collector", c.host,
		"span_count", spanCount,
	)
}

var newOTLPExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	c := parseCollector(cfg.Endpoint)
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(c.host),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if !c.secure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// failSoftExporter keeps a collector outage from surfacing as an error in
// the batch processor. Spans in a failed batch are logged and dropped.
type failSoftExporter struct {
	sdktrace.SpanExporter
	collector collector
}

func (e failSoftExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.SpanExporter.ExportSpans(ctx, spans); err != nil {
		onExportFailure(err, e.collector, len(spans))
	}
	return nil
}

func checkConfig(cfg config.TracingConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "otlp", "otlpgrpc":
	case "":
		return errors.New("tracing exporter cannot be empty")
	default:
		return fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	if parseCollector(cfg.Endpoint).host == "" {
		return errors.New("tracing endpoint cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return errors.New("tracing timeout must be > 0")
	}
	return nil
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Init installs the global tracer provider and W3C propagator. With tracing
// disabled a no-op provider is installed and inbound trace headers are still
// propagated to the embedding backend.
func Init(ctx context.Context, cfg config.TracingConfig, info ServiceInfo) (ShutdownFunc, error) {
	installPropagator()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	exp, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(info.attributes()...))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(failSoftExporter{SpanExporter: exp, collector: parseCollector(cfg.Endpoint)}),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush tracing provider: %w", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing provider: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}
