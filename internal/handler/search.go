package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
)

// Searcher is the interface handler.Search depends on.
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResultSet, error)
}

// Search returns a handler for POST /api/search.
func Search(engine Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SearchRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, apperr.Stage(apperr.ErrInvalidQuery, "search", fmt.Errorf("malformed request body: %w", err)))
			return
		}

		result, err := engine.Search(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		if !req.ReturnChunks {
			result = withoutChunkContent(result)
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// withoutChunkContent returns a shallow copy of result with each hit's
// Content cleared. The cache stores the original (full-content) result
// set, so later reuse via search_id — e.g. by Ask — is unaffected.
func withoutChunkContent(result *model.SearchResultSet) *model.SearchResultSet {
	stripped := *result
	stripped.Results = make([]model.SearchHit, len(result.Results))
	for i, h := range result.Results {
		h.Content = ""
		stripped.Results[i] = h
	}
	return &stripped
}
