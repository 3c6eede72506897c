package handler

import (
	"context"
	"net/http"

	"card-admin/internal/middleware"
	"card-admin/internal/model"
	"card-admin/internal/service"
	"card-admin/pkg/apierror"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Username = claims.Username

	return actor
}

// auditContext carries the caller identity down to the services.
func auditContext(r *http.Request) context.Context {
	return service.ContextWithActor(r.Context(), actorFromRequest(r))
}

func requireClaims(w http.ResponseWriter, r *http.Request) (*model.AuthClaims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, apierror.Unauthorized("authentication required"))
		return nil, false
	}
	return claims, true
}
