package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// DocInfo summarizes one document's presence across collections. If
// the most recent ingestion stage for this document failed, FailedStage
// and LastError record what happened; both are cleared on the next
// successful Record for that document.
type DocInfo struct {
	Filename        string                   `json:"filename"`
	ChunkCounts     map[model.Collection]int `json:"chunk_counts"`
	FirstIngestedAt time.Time                `json:"first_ingested_at"`
	FailedStage     string                   `json:"failed_stage,omitempty"`
	LastError       string                   `json:"last_error,omitempty"`
}

// CollectionDeleteCount is one entry of a ClearAll report.
type CollectionDeleteCount struct {
	Collection model.Collection `json:"collection"`
	Deleted    int              `json:"deleted"`
}

// Registry is the in-memory document inventory (C9). It is rebuilt
// from the vector store's ListDistinct on startup and kept in sync by
// Record as ingestion proceeds.
type Registry struct {
	store repository.VectorStore

	mu   sync.RWMutex
	docs map[string]*DocInfo
}

// NewRegistry creates an empty Registry bound to store.
func NewRegistry(store repository.VectorStore) *Registry {
	return &Registry{
		store: store,
		docs:  make(map[string]*DocInfo),
	}
}

// Rebuild scans every collection's distinct documents via C3 and
// reconstructs the in-memory index. Call once at startup.
func (r *Registry) Rebuild(ctx context.Context) error {
	fresh := make(map[string]*DocInfo)

	for _, collection := range model.Collections {
		filenames, err := r.store.ListDistinct(ctx, collection, "document")
		if err != nil {
			return apperr.Stage(apperr.ErrUpstreamUnavailable, "registry_rebuild", err)
		}
		for _, filename := range filenames {
			count, err := r.store.Count(ctx, collection, &repository.Where{DocumentsIn: []string{filename}})
			if err != nil {
				return apperr.Stage(apperr.ErrUpstreamUnavailable, "registry_rebuild", err)
			}
			info, ok := fresh[filename]
			if !ok {
				info = &DocInfo{Filename: filename, ChunkCounts: make(map[model.Collection]int)}
				fresh[filename] = info
			}
			info.ChunkCounts[collection] = count
		}
	}

	r.mu.Lock()
	r.docs = fresh
	r.mu.Unlock()
	return nil
}

// Has reports whether filename has any recorded chunks in any
// collection.
func (r *Registry) Has(filename string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.docs[filename]
	if !ok {
		return false
	}
	for _, n := range info.ChunkCounts {
		if n > 0 {
			return true
		}
	}
	return false
}

// List returns the current inventory, ordered by filename.
func (r *Registry) List() []DocInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DocInfo, 0, len(r.docs))
	for _, info := range r.docs {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// Record updates the chunk count for filename in collection, setting
// FirstIngestedAt the first time any collection is recorded for it.
func (r *Registry) Record(filename string, collection model.Collection, nChunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.docs[filename]
	if !ok {
		info = &DocInfo{
			Filename:        filename,
			ChunkCounts:     make(map[model.Collection]int),
			FirstIngestedAt: time.Now().UTC(),
		}
		r.docs[filename] = info
	}
	info.ChunkCounts[collection] = nChunks
	info.FailedStage = ""
	info.LastError = ""
}

// RecordFailure records the last error seen for filename during stage,
// so the inventory can surface a document's ingestion trouble without
// requiring a side channel. A later successful Record for the same
// filename clears it.
func (r *Registry) RecordFailure(filename, stage string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.docs[filename]
	if !ok {
		info = &DocInfo{
			Filename:    filename,
			ChunkCounts: make(map[model.Collection]int),
		}
		r.docs[filename] = info
	}
	info.FailedStage = stage
	info.LastError = cause.Error()
}

// Forget removes filename from the registry entirely.
func (r *Registry) Forget(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, filename)
}

// ClearAll deletes every document from every collection in the vector
// store and resets the registry, returning the per-collection delete
// counts.
func (r *Registry) ClearAll(ctx context.Context) ([]CollectionDeleteCount, error) {
	counts := make([]CollectionDeleteCount, 0, len(model.Collections))
	for _, collection := range model.Collections {
		n, err := r.store.Delete(ctx, collection, nil)
		if err != nil {
			return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "clear_all", err)
		}
		counts = append(counts, CollectionDeleteCount{Collection: collection, Deleted: n})
	}

	r.mu.Lock()
	r.docs = make(map[string]*DocInfo)
	r.mu.Unlock()

	return counts, nil
}
