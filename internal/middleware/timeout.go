package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `{"success":false,"code":503,"message":"request timed out","error_code":"REQUEST_TIMEOUT"}`

// Timeout bounds handler time with http.TimeoutHandler, which buffers the
// response. The content type is set up front because the timeout branch
// writes straight to w; on success the handler's own headers replace it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			bounded.ServeHTTP(w, r)
		})
	}
}
