package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"card-admin/internal/model"
	"card-admin/internal/service"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.UpdateProfileRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.service.UpdateProfile(auditContext(r), claims.UserID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "profile updated", profile, nil)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(auditContext(r), claims.UserID, payload); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "password changed", nil, nil)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	users, meta, err := h.service.List(r.Context(), claims.UserID, model.UserQuery{
		Search: strings.TrimSpace(query.Get("search")),
		Page:   parseIntOrDefault(query.Get("page"), 1),
		Limit:  parseIntOrDefault(query.Get("limit"), 20),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", model.UserList{Users: users}, &meta)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", user, nil)
}

func (h *UserHandler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.UpdateFlagsRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.UpdateFlags(auditContext(r), claims.UserID, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "user updated", user, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(auditContext(r), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "user deleted", map[string]any{"deleted": true}, nil)
}
