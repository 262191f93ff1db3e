package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
)

// Asker is the interface handler.Ask depends on.
type Asker interface {
	Ask(ctx context.Context, req model.AskRequest) (*model.AskResponse, error)
}

// Ask returns a handler for POST /api/ask.
func Ask(qa Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.AskRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, apperr.Stage(apperr.ErrInvalidQuery, "ask", fmt.Errorf("malformed request body: %w", err)))
			return
		}

		resp, err := qa.Ask(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
