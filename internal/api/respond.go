package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("error encoding response", zap.Error(err))
	}
}

// respondError sends message to the client; err stays in the server log.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.logger.Warn("request failed", zap.Int("status", status), zap.String("message", message), zap.Error(err))
	}
	h.respondJSON(w, status, errorResponse{Error: message, Code: status})
}
