package middleware

import (
	"encoding/json"
	"net/http"

	"card-admin/internal/model"
)

func writeEnvelope(w http.ResponseWriter, status int, errorCode string, message string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success:     false,
		Code:        status,
		Message:     message,
		ErrorCode:   errorCode,
		ErrorDetail: detail,
	})
}
