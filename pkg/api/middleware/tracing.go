package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "recall.http"

// TracingOptions defines HTTP tracing middleware behavior.
type TracingOptions struct {
	// SkipPaths are health endpoints that should not create spans.
	SkipPaths map[string]struct{}
}

// DefaultTracingOptions skips the health endpoints.
func DefaultTracingOptions() TracingOptions {
	return TracingOptions{
		SkipPaths: map[string]struct{}{
			"/health": {},
			"/ready":  {},
		},
	}
}

// Tracing creates a server span per request, continuing an inbound W3C trace
// when one is present. The span is renamed to the matched route once the
// router has resolved it, and tagged with the owner the request is scoped to.
func Tracing(opts TracingOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := opts.SkipPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(httpTracerName).Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			sw := wrapStatus(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			if route != r.URL.Path {
				span.SetName(r.Method + " " + route)
			}
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", sw.status),
			)
			if id := GetRequestID(ctx); id != "" {
				span.SetAttributes(attribute.String("http.request_id", id))
			}
			if owner := chi.URLParamFromCtx(ctx, "owner"); owner != "" {
				span.SetAttributes(attribute.String("recall.owner", owner))
			}
			if sw.status >= http.StatusBadRequest {
				span.SetStatus(otelcodes.Error, http.StatusText(sw.status))
				return
			}
			span.SetStatus(otelcodes.Ok, "")
		})
	}
}
