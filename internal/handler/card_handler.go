package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"card-admin/internal/model"
	"card-admin/internal/service"
)

type CardHandler struct {
	service *service.CardService
}

func NewCardHandler(service *service.CardService) *CardHandler {
	return &CardHandler{service: service}
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	cards, err := h.service.List(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", model.CardList{Cards: cards}, nil)
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.CardRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	card, err := h.service.Create(auditContext(r), claims.UserID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "card created", card, nil)
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	card, err := h.service.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", card, nil)
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.CardRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	card, err := h.service.Update(auditContext(r), claims.UserID, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "card updated", card, nil)
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(auditContext(r), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "card deleted", map[string]any{"deleted": true}, nil)
}
