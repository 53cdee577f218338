// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/angebot-ai/sales-assistant/internal/sanitize"
	"github.com/angebot-ai/sales-assistant/internal/service"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps service-layer errors onto HTTP responses. Raw
// collaborator errors never pass through here; only the classified
// user-facing message does.
func writeServiceError(w http.ResponseWriter, err error) {
	var collabErr *service.CollaboratorError
	var invalidOffer *service.InvalidOfferError

	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrMessageLimit):
		writeError(w, http.StatusConflict, "Die maximale Anzahl an Nachrichten für dieses Gespräch ist erreicht.")
	case errors.Is(err, service.ErrConversationLimit):
		writeError(w, http.StatusConflict, "Die maximale Anzahl gleichzeitiger Gespräche ist erreicht.")
	case errors.Is(err, sanitize.ErrEmpty),
		errors.Is(err, sanitize.ErrTooLong),
		errors.Is(err, sanitize.ErrInvalidUTF8),
		errors.Is(err, sanitize.ErrDisallowedContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &collabErr):
		writeError(w, http.StatusServiceUnavailable, collabErr.Message)
	case errors.As(err, &invalidOffer):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "invalid offer",
			"violations": invalidOffer.Violations,
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
