package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goclaw/recall/pkg/api/response"
	"github.com/goclaw/recall/pkg/logger"
)

// Recovery returns a middleware that recovers from panics. The panic is
// logged through the request-scoped logger when Logger ran first.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					requestID := GetRequestID(r.Context())
					logger.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					response.Error(w,
						http.StatusInternalServerError,
						response.ErrCodeInternalServer,
						"internal server error",
						requestID,
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
