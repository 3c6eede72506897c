package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-admin/internal/middleware"
	"card-admin/internal/model"
	"card-admin/internal/testutil"
	"card-admin/pkg/apierror"
)

func TestWriteError_Classification(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apierror.Conflict("username already exists", "alice"), http.StatusConflict, apierror.CodeConflict},
		{fmt.Errorf("create user: %w", model.ErrUserAlreadyExists), http.StatusConflict, apierror.CodeConflict},
		{model.ErrCardNotFound, http.StatusNotFound, apierror.CodeNotFound},
		{model.ErrTokenExpired, http.StatusUnauthorized, apierror.CodeUnauthorized},
		{model.ErrForbidden, http.StatusForbidden, apierror.CodeForbidden},
		{model.ErrInvalidInput, http.StatusUnprocessableEntity, apierror.CodeValidation},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

		env := testutil.Decode(t, rec, nil)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.False(t, env.Success)
		assert.Equal(t, tc.code, env.ErrorCode)
	}
}

func TestWriteError_SanitizesUnknownErrors(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.New(`pq: relation "users" does not exist`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/cards", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	env := testutil.Decode(t, rec, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", env.Message)
	assert.Equal(t, "req-42", env.ErrorDetail)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, logs.String(), `relation \"users\" does not exist`)
	assert.Contains(t, logs.String(), "stack")
}

func TestWriteError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodPost, "/auth/login/username", nil),
		apierror.RateLimited("too many login attempts", 1500*time.Millisecond))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestDecodeJSON(t *testing.T) {
	var payload model.LoginRequest

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
	err := decodeJSON(httptest.NewRecorder(), req, &payload)
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)

	big := `{"username":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	err = decodeJSON(httptest.NewRecorder(), req, &payload)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "request body is too large", apiErr.Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"alice","password":"pw"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &payload))
	assert.Equal(t, "alice", payload.Username)
}

func TestParseIntOrDefault(t *testing.T) {
	assert.Equal(t, 5, parseIntOrDefault("", 5))
	assert.Equal(t, 5, parseIntOrDefault("five", 5))
	assert.Equal(t, 3, parseIntOrDefault("3", 5))
}

type stubPinger struct{ err error }

func (s stubPinger) Health(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var data map[string]string
	env := testutil.Decode(t, rec, &data)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", data["status"])

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("dial tcp: refused")}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	env = testutil.Decode(t, rec, &data)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "unhealthy", data["status"])
}
