package handler

import (
	"net/http"

	"card-admin/internal/model"
	"card-admin/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
	users   *service.UserService
}

func NewAuthHandler(service *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{service: service, users: users}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.Register(auditContext(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "user registered", user, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Login(auditContext(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", result, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.service.Refresh(auditContext(r), payload.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "token refreshed", tokens, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	profile, err := h.users.Me(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", profile, nil)
}
