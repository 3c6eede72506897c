package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"card-admin/internal/middleware"
	"card-admin/internal/model"
	"card-admin/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any, meta *model.Meta) {
	writeJSON(w, status, model.APIResponse{
		Success: true,
		Code:    status,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// writeError maps domain errors to the envelope. Anything unrecognised is
// logged with its stack and reported as a bare 500 carrying the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, detail := classify(err)

	if status == http.StatusInternalServerError {
		detail = middleware.RequestIDFromContext(r.Context())
		slog.Error("unhandled error",
			"request_id", detail,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
			"stack", string(debug.Stack()),
		)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(apiErr.RetryAfter.Seconds()))))
	}

	writeJSON(w, status, model.APIResponse{
		Success:     false,
		Code:        status,
		Message:     message,
		ErrorCode:   code,
		ErrorDetail: detail,
	})
}

func classify(err error) (int, string, string, string) {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.HTTPStatus, apiErr.Code, apiErr.Message, apiErr.Details
	case errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound, apierror.CodeNotFound, "user not found", ""
	case errors.Is(err, model.ErrCardNotFound):
		return http.StatusNotFound, apierror.CodeNotFound, "card not found", ""
	case errors.Is(err, model.ErrUserAlreadyExists):
		return http.StatusConflict, apierror.CodeConflict, "username or email already exists", ""
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid username or password", ""
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrTokenExpired):
		return http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid or expired token", ""
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required", ""
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, apierror.CodeForbidden, "access denied", ""
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusUnprocessableEntity, apierror.CodeValidation, "invalid input", ""
	default:
		return http.StatusInternalServerError, apierror.CodeInternal, "internal server error", ""
	}
}

// decodeJSON reads a single JSON object from a size-limited body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.Validation("request body is too large", "")
		}
		return apierror.Validation("invalid JSON body", "")
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apierror.NotFound("route not found", r.URL.Path))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apierror.New("METHOD_NOT_ALLOWED", "method not allowed", r.Method, http.StatusMethodNotAllowed))
}
