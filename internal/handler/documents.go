package handler

import (
	"context"
	"net/http"

	"github.com/connexus-ai/ragcore/internal/service"
)

// DocumentRegistry is the interface handler.Documents depends on.
type DocumentRegistry interface {
	List() []service.DocInfo
	ClearAll(ctx context.Context) ([]service.CollectionDeleteCount, error)
}

// ListDocuments returns a handler for GET /api/documents: the document
// inventory as filename -> DocInfo.
func ListDocuments(registry DocumentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs := registry.List()
		inventory := make(map[string]service.DocInfo, len(docs))
		for _, d := range docs {
			inventory[d.Filename] = d
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": inventory})
	}
}

// ClearDocuments returns a handler for DELETE /api/documents: wipes
// every collection and reports the per-collection delete counts.
func ClearDocuments(registry DocumentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := registry.ClearAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": counts})
	}
}
