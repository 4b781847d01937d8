package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// HTTPRecorder receives one measurement per API request. The context carries
// the request span so recorders can attach exemplars.
type HTTPRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
	IncInFlight()
	DecInFlight()
}

// Metrics returns a middleware that records request counts, latency and
// in-flight requests. The route label is the matched chi pattern, so owner
// and memory ids never become label values. A panicking handler is recorded
// as a 500 before the panic continues to Recovery.
func Metrics(recorder HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncInFlight()
			defer recorder.DecInFlight()

			sw := wrapStatus(w)
			defer func() {
				if err := recover(); err != nil {
					recorder.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r), http.StatusInternalServerError, time.Since(start))
					panic(err)
				}
			}()

			next.ServeHTTP(sw, r)
			recorder.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r), sw.status, time.Since(start))
		})
	}
}
