package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// writeJSON encodes v as the response body with status and the JSON
// content type header.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its apperr HTTP status and writes the spec's
// {"detail": "<message>"} error envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.Status(err), map[string]string{"detail": err.Error()})
}
