package handler

import (
	"net/http"
	"strings"

	"card-admin/internal/model"
	"card-admin/internal/service"
)

type AuditHandler struct {
	service *service.AuditService
	users   *service.UserService
}

func NewAuditHandler(service *service.AuditService, users *service.UserService) *AuditHandler {
	return &AuditHandler{service: service, users: users}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if err := h.users.RequireAdmin(r.Context(), claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	items, meta, err := h.service.Query(r.Context(), model.AuditQuery{
		Action:  strings.TrimSpace(query.Get("action")),
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		Status:  strings.TrimSpace(query.Get("status")),
		From:    strings.TrimSpace(query.Get("from")),
		To:      strings.TrimSpace(query.Get("to")),
		Page:    parseIntOrDefault(query.Get("page"), 1),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", model.AuditListData{Items: items}, &meta)
}
