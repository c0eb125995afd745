package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: message})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIError{Error: message})
}

// writeError maps the store error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, detail(err, store.ErrValidation))
	case errors.Is(err, store.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Device not found")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeErrorMessage(w, http.StatusInternalServerError, "Failed to persist change")
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
