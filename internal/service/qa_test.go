package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/cache"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

type fakeCompleter struct {
	answer string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userMessage string, params CompletionParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestQA(t *testing.T, completer Completer, store repository.VectorStore, threshold float64) *QA {
	t.Helper()
	resultCache := cache.NewMemoryCache(10, 0)
	engine := NewSearchEngine(&fakeQueryEmbedder{vec: []float32{1, 0}}, store, resultCache)
	return NewQA(completer, engine, resultCache, store, threshold)
}

func TestQA_Ask_EmptyQuestion(t *testing.T) {
	qa := newTestQA(t, &fakeCompleter{}, repository.NewMemoryVectorStore(), 0.4)
	_, err := qa.Ask(context.Background(), model.AskRequest{Question: "  "})
	if !errors.Is(err, apperr.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestQA_Ask_ChunkIDsPrecedence(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, model.CollectionDocuments, []model.Chunk{
		{ChunkID: "a.txt::documents::00000", Document: "a.txt", Content: "alpha content", Embedding: []float32{1, 0}},
	})

	qa := newTestQA(t, &fakeCompleter{answer: "the answer is alpha [c1]"}, store, 0.4)
	resp, err := qa.Ask(ctx, model.AskRequest{Question: "what is it?", ChunkIDs: []string{"a.txt::documents::00000"}})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if len(resp.RawCitations) != 1 || resp.RawCitations[0].ChunkID != "a.txt::documents::00000" {
		t.Fatalf("expected citation to exact chunk, got %+v", resp.RawCitations)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "a.txt" {
		t.Fatalf("expected sources=[a.txt], got %v", resp.Sources)
	}
}

func TestQA_Ask_SearchIDFromCache(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	resultCache := cache.NewMemoryCache(10, 0)
	engine := NewSearchEngine(&fakeQueryEmbedder{vec: []float32{1, 0}}, store, resultCache)
	qa := NewQA(&fakeCompleter{answer: "answer [c1]"}, engine, resultCache, store, 0.4)

	resultCache.Put(&model.SearchResultSet{
		SearchID: "sid-1",
		Query:    "hello",
		Results: []model.SearchHit{
			{ChunkID: "x::documents::00000", Document: "x", Content: "x content", Score: 0.9, Collection: model.CollectionDocuments},
		},
	})

	resp, err := qa.Ask(context.Background(), model.AskRequest{Question: "hello", SearchID: "sid-1"})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if len(resp.RawCitations) != 1 {
		t.Fatalf("expected 1 citation from cached search, got %d", len(resp.RawCitations))
	}
}

func TestQA_Ask_SearchIDMissFallsThrough(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, model.CollectionDocuments, []model.Chunk{
		{ChunkID: "a.txt::documents::00000", Document: "a.txt", Content: "alpha", Embedding: []float32{1, 0}},
	})
	qa := newTestQA(t, &fakeCompleter{answer: "answer [c1]"}, store, 0.4)

	resp, err := qa.Ask(ctx, model.AskRequest{Question: "hello", SearchID: "does-not-exist"})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if len(resp.RawCitations) == 0 {
		t.Fatal("expected fresh search to supply citations on cache miss")
	}
}

func TestQA_Ask_EmptyContextReturnsInsufficientAnswer(t *testing.T) {
	qa := newTestQA(t, &fakeCompleter{answer: "should not be called"}, repository.NewMemoryVectorStore(), 0.4)
	resp, err := qa.Ask(context.Background(), model.AskRequest{Question: "hello"})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if resp.Answer != "I don't know based on the provided documents." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.RawCitations) != 0 {
		t.Errorf("expected no citations, got %v", resp.RawCitations)
	}
}

func TestQA_Ask_LLMError(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, model.CollectionDocuments, []model.Chunk{
		{ChunkID: "a.txt::documents::00000", Document: "a.txt", Content: "alpha", Embedding: []float32{1, 0}},
	})
	qa := newTestQA(t, &fakeCompleter{err: fmt.Errorf("llm timeout")}, store, 0.4)

	_, err := qa.Ask(ctx, model.AskRequest{Question: "hello"})
	if err == nil {
		t.Fatal("expected error propagated from LLM")
	}
}

func TestBuildCitations_FallsBackToTopTwoWhenNoneCited(t *testing.T) {
	passages := []passage{
		{document: "a", chunkID: "a::documents::00000", score: 0.9},
		{document: "b", chunkID: "b::documents::00000", score: 0.8},
		{document: "c", chunkID: "c::documents::00000", score: 0.7},
	}
	citations, sources := buildCitations(passages, "an answer with no citation tags", 0.4)
	if len(citations) != 2 {
		t.Fatalf("expected top-2 fallback, got %d citations", len(citations))
	}
	if len(sources) != 2 || sources[0] != "a" || sources[1] != "b" {
		t.Errorf("sources = %v", sources)
	}
}

func TestBuildCitations_KeepsCitedAboveThreshold(t *testing.T) {
	passages := []passage{
		{document: "a", chunkID: "a::documents::00000", score: 0.9},
		{document: "b", chunkID: "b::documents::00000", score: 0.1}, // below threshold
	}
	citations, sources := buildCitations(passages, "cites [c1] and [c2]", 0.4)
	if len(citations) != 1 || citations[0].Document != "a" {
		t.Fatalf("expected only passage above threshold, got %+v", citations)
	}
	if len(sources) != 1 || sources[0] != "a" {
		t.Errorf("sources = %v", sources)
	}
}

func TestStrategyCollections(t *testing.T) {
	if got := strategyCollections("basic"); len(got) != 1 || got[0] != model.CollectionDocuments {
		t.Errorf("basic strategy = %v", got)
	}
	if got := strategyCollections("unknown"); got != nil {
		t.Errorf("unknown strategy should defer to auto-select, got %v", got)
	}
}
