package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/cache"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// candidateMultiplier widens the per-collection fetch so that
// post-merge truncation to top_k still has enough candidates to rank
// from.
const candidateMultiplier = 3

// similarityTieTolerance is the epsilon within which two hits are
// considered tied for ordering purposes.
const similarityTieTolerance = 1e-6

// QueryEmbedder embeds search queries. It is satisfied by Embedder.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchEngine implements the cross-collection retrieval operation
// (C6): embed once, fan out to the selected collections concurrently,
// merge, score, and cache the result set.
type SearchEngine struct {
	embedder QueryEmbedder
	store    repository.VectorStore
	cache    cache.SearchCache
}

// NewSearchEngine creates a SearchEngine.
func NewSearchEngine(embedder QueryEmbedder, store repository.VectorStore, resultCache cache.SearchCache) *SearchEngine {
	return &SearchEngine{embedder: embedder, store: store, cache: resultCache}
}

// Search embeds the request's query, searches the selected collections
// concurrently, merges and ranks hits, and stores the result set in
// the search cache under a freshly assigned search_id.
func (s *SearchEngine) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResultSet, error) {
	query := req.Query
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Stage(apperr.ErrInvalidQuery, "search", fmt.Errorf("query is empty"))
	}

	topK := req.TopK
	if topK <= 0 {
		topK = model.DefaultTopK
	}
	if topK > model.MaxTopK {
		topK = model.MaxTopK
	}

	collections := req.Collections
	if len(collections) == 0 {
		var err error
		collections, err = s.selectStrategy(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "search", err)
	}
	queryVec := vecs[0]

	where := buildWhere(req.Documents, req.ExcludeDocuments)
	hits, err := s.fanOutQuery(ctx, collections, queryVec, topK*candidateMultiplier, where)
	if err != nil {
		return nil, err
	}

	if req.Threshold != nil {
		hits = filterThreshold(hits, *req.Threshold)
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	result := assembleResultSet(query, hits, collections)
	if s.cache != nil {
		s.cache.Put(result)
	}
	return result, nil
}

// fanOutQuery runs one C3.Query per collection concurrently and merges
// the results, matching the cross-collection concurrency pattern used
// throughout the retrieval path.
func (s *SearchEngine) fanOutQuery(ctx context.Context, collections []model.Collection, vec []float32, k int, where *repository.Where) ([]model.SearchHit, error) {
	results := make([][]model.SearchHit, len(collections))

	g, gCtx := errgroup.WithContext(ctx)
	for i, collection := range collections {
		i, collection := i, collection
		g.Go(func() error {
			hits, err := s.store.Query(gCtx, collection, vec, k, where)
			if err != nil {
				return err
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "search", err)
	}

	var merged []model.SearchHit
	for _, hits := range results {
		merged = append(merged, hits...)
	}
	return merged, nil
}

// selectStrategy picks the collection set per §4.6 when the caller did
// not specify one: prefer paragraph summaries, fall back to logical
// summaries, otherwise search documents alone.
func (s *SearchEngine) selectStrategy(ctx context.Context, req model.SearchRequest) ([]model.Collection, error) {
	paragraphCount, err := s.store.Count(ctx, model.CollectionParagraphSummaries, buildWhere(req.Documents, req.ExcludeDocuments))
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "search", err)
	}
	if paragraphCount > 0 {
		return []model.Collection{model.CollectionParagraphSummaries, model.CollectionDocuments}, nil
	}

	logicalCount, err := s.store.Count(ctx, model.CollectionLogicalSummaries, buildWhere(req.Documents, req.ExcludeDocuments))
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "search", err)
	}
	if logicalCount > 0 {
		return []model.Collection{model.CollectionLogicalSummaries, model.CollectionDocuments}, nil
	}

	return []model.Collection{model.CollectionDocuments}, nil
}

func buildWhere(documents, excludeDocuments []string) *repository.Where {
	if len(documents) == 0 && len(excludeDocuments) == 0 {
		return nil
	}
	return &repository.Where{
		DocumentsIn:    documents,
		DocumentsNotIn: excludeDocuments,
	}
}

func filterThreshold(hits []model.SearchHit, threshold float64) []model.SearchHit {
	filtered := hits[:0]
	for _, h := range hits {
		if h.Score >= threshold {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

// sortHits orders by descending similarity, tie-breaking on
// collection rank then lexicographic chunk_id.
func sortHits(hits []model.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if math.Abs(hits[i].Score-hits[j].Score) > similarityTieTolerance {
			return hits[i].Score > hits[j].Score
		}
		ri, rj := model.CollectionRank(hits[i].Collection), model.CollectionRank(hits[j].Collection)
		if ri != rj {
			return ri < rj
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

func assembleResultSet(query string, hits []model.SearchHit, collections []model.Collection) *model.SearchResultSet {
	docSet := make(map[string]struct{})
	uniqueDocuments := make([]string, 0, len(hits))
	chunkIDs := make([]string, 0, len(hits))
	results := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		if _, ok := docSet[h.Document]; !ok {
			docSet[h.Document] = struct{}{}
			uniqueDocuments = append(uniqueDocuments, h.Document)
		}
		chunkIDs = append(chunkIDs, h.ChunkID)
		results = append(results, h)
	}

	return &model.SearchResultSet{
		SearchID:            uuid.NewString(),
		Query:               query,
		Results:             results,
		UniqueDocuments:     uniqueDocuments,
		ChunkIDs:            chunkIDs,
		CollectionsSearched: collections,
		Timestamp:           time.Now().UTC(),
	}
}
