// internal/api/middleware/logging.go
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"readreward/internal/metrics"
)

// RequestLogger writes one structured line per request and records the
// request metrics under the matched route pattern.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			latency := time.Since(start)
			route := routePattern(r)
			metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), latency.Seconds())

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency_ms", latency.Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
				"client_ip", r.RemoteAddr,
			}
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "HTTP request", attrs...)
				return
			}
			logger.InfoContext(r.Context(), "HTTP request", attrs...)
		})
	}
}

// routePattern keeps the metric label set bounded: unmatched paths share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
