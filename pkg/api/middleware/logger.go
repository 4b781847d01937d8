// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"time"

	"github.com/goclaw/recall/pkg/logger"
)

// Logger returns a middleware that logs one line per request and attaches a
// request-scoped logger, tagged with the request id, to the context.
// Handlers and Recovery reach it through logger.FromContext.
// Server errors are logged at warn level.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrapStatus(w)

			reqLog := log.With("request_id", GetRequestID(r.Context()))
			r = r.WithContext(reqLog.WithContext(r.Context()))
			next.ServeHTTP(sw, r)

			args := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", sw.size,
				"remote_addr", r.RemoteAddr,
			}
			if sw.status >= http.StatusInternalServerError {
				reqLog.WarnContext(r.Context(), "HTTP request failed", args...)
				return
			}
			reqLog.InfoContext(r.Context(), "HTTP request", args...)
		})
	}
}
