package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"card-admin/internal/metrics"
)

// Metrics labels requests by chi route pattern so path parameters do not
// explode label cardinality.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.ObserveRequest(r.Method, route, wrapped.status, time.Since(started))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	if !sr.wroteHeader {
		sr.status = statusCode
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(statusCode)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
