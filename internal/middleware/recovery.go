package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"card-admin/pkg/apierror"
)

// Recovery turns a panic into the generic 500 envelope. The detail sent to
// the client is only the request id; the panic and stack go to the log.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			requestID := w.Header().Get(RequestIDHeader)
			slog.Error("panic recovered",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"error", fmt.Sprintf("%v", recovered),
				"stack", string(debug.Stack()),
			)
			writeEnvelope(w, http.StatusInternalServerError, apierror.CodeInternal, "internal server error", requestID)
		}()

		next.ServeHTTP(w, r)
	})
}
