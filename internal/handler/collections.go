package handler

import (
	"context"
	"net/http"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// CollectionStore is the interface handler.Collections depends on.
type CollectionStore interface {
	Count(ctx context.Context, collection model.Collection, where *repository.Where) (int, error)
	ListDistinct(ctx context.Context, collection model.Collection, field string) ([]string, error)
}

type collectionSummary struct {
	Collection model.Collection `json:"collection"`
	Size       int              `json:"size"`
	Documents  []string         `json:"documents"`
}

// Collections returns a handler for GET /api/collections: per-collection
// size and distinct document list.
func Collections(store CollectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		summaries := make([]collectionSummary, 0, len(model.Collections))

		for _, collection := range model.Collections {
			size, err := store.Count(ctx, collection, nil)
			if err != nil {
				writeError(w, apperr.Stage(apperr.ErrUpstreamUnavailable, "collections", err))
				return
			}
			docs, err := store.ListDistinct(ctx, collection, "document")
			if err != nil {
				writeError(w, apperr.Stage(apperr.ErrUpstreamUnavailable, "collections", err))
				return
			}
			summaries = append(summaries, collectionSummary{Collection: collection, Size: size, Documents: docs})
		}

		writeJSON(w, http.StatusOK, map[string]any{"collections": summaries})
	}
}
