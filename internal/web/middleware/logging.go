// Package middleware holds the HTTP middleware in front of the import API.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
)

// HTTPRecorder receives one observation per request. *metrics.Metrics
// implements it.
type HTTPRecorder interface {
	RecordHTTP(method, route string, status int, d time.Duration)
}

// RequestLogger logs every request and reports it to rec, which may be
// nil. Requests are labelled by their chi route pattern so ids in the
// path do not explode metric cardinality.
//
// Log fields: method, path, route, status, duration_ms, ip, owner_id,
// user_agent.
func RequestLogger(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := routePattern(r)
			if rec != nil {
				rec.RecordHTTP(r.Method, route, ww.status, duration)
			}

			logger := logging.FromContext(r.Context())
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", ww.status,
				"duration_ms", duration.Milliseconds(),
				"ip", ClientIP(r),
				"owner_id", r.Header.Get(OwnerHeader),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
