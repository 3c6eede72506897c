package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"card-admin/internal/model"
	"card-admin/pkg/apierror"
)

type tokenValidator interface {
	ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeEnvelope(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "missing or invalid authorization header", "")
			return
		}

		token := strings.TrimSpace(header[7:])
		claims, err := m.validator.ValidateToken(token, "access")
		if err != nil {
			message := "invalid token"
			if errors.Is(err, model.ErrTokenExpired) {
				message = "token expired"
			}
			writeEnvelope(w, http.StatusUnauthorized, apierror.CodeUnauthorized, message, "")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks the admin claim; handlers re-check against the store.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required", "")
			return
		}

		if !claims.IsAdmin {
			writeEnvelope(w, http.StatusForbidden, apierror.CodeForbidden, "admin privileges required", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}
