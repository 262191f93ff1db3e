package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/connexus-ai/ragcore/internal/model"
)

// MemoryVectorStore is an in-process VectorStore used whenever
// DEMO_MODE is set, whether or not DATABASE_URL is configured. It computes cosine
// similarity directly, with no persistence across restarts.
type MemoryVectorStore struct {
	mu   sync.RWMutex
	data map[model.Collection]map[string]model.Chunk
}

// NewMemoryVectorStore creates an empty MemoryVectorStore.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		data: make(map[model.Collection]map[string]model.Chunk),
	}
}

var _ VectorStore = (*MemoryVectorStore)(nil)

func (s *MemoryVectorStore) Upsert(ctx context.Context, collection model.Collection, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.data[collection]
	if !ok {
		bucket = make(map[string]model.Chunk)
		s.data[collection] = bucket
	}
	for _, c := range chunks {
		bucket[c.ChunkID] = c
	}
	return nil
}

func (s *MemoryVectorStore) Query(ctx context.Context, collection model.Collection, vector []float32, k int, where *Where) ([]model.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.data[collection]
	var hits []model.SearchHit
	for _, c := range bucket {
		if !matchesWhere(c, where) {
			continue
		}
		hits = append(hits, model.SearchHit{
			Content:    c.Content,
			Score:      clamp01(cosineSimilarity(vector, c.Embedding)),
			Document:   c.Document,
			ChunkID:    c.ChunkID,
			Collection: collection,
			Metadata:   c.Metadata,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryVectorStore) GetByDocument(ctx context.Context, collection model.Collection, document string) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []model.Chunk
	for _, c := range s.data[collection] {
		if c.Document == document {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkID < chunks[j].ChunkID })
	return chunks, nil
}

func (s *MemoryVectorStore) GetByChunkIDs(ctx context.Context, chunkIDs []string) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		wanted[id] = struct{}{}
	}

	var chunks []model.Chunk
	for _, bucket := range s.data {
		for id, c := range bucket {
			if _, ok := wanted[id]; ok {
				chunks = append(chunks, c)
			}
		}
	}
	return chunks, nil
}

func (s *MemoryVectorStore) Delete(ctx context.Context, collection model.Collection, where *Where) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.data[collection]
	n := 0
	for id, c := range bucket {
		if matchesWhere(c, where) {
			delete(bucket, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryVectorStore) Count(ctx context.Context, collection model.Collection, where *Where) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.data[collection] {
		if matchesWhere(c, where) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryVectorStore) ListDistinct(ctx context.Context, collection model.Collection, field string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range s.data[collection] {
		var v string
		if field == "chunk_id" {
			v = c.ChunkID
		} else {
			v = c.Document
		}
		seen[v] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (s *MemoryVectorStore) Heartbeat(ctx context.Context) error {
	return nil
}

func matchesWhere(c model.Chunk, where *Where) bool {
	if where.Empty() {
		return true
	}
	if len(where.DocumentsIn) > 0 && !contains(where.DocumentsIn, c.Document) {
		return false
	}
	if len(where.DocumentsNotIn) > 0 && contains(where.DocumentsNotIn, c.Document) {
		return false
	}
	if len(where.ChunkIDsIn) > 0 && !contains(where.ChunkIDsIn, c.ChunkID) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
