package service

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

var errTestIngest = errors.New("embedding upstream unavailable")

func TestRegistry_RebuildFromStore(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, model.CollectionDocuments, []model.Chunk{
		{ChunkID: "a.txt::documents::00000", Document: "a.txt", Collection: model.CollectionDocuments, Embedding: []float32{1}},
		{ChunkID: "a.txt::documents::00001", Document: "a.txt", Collection: model.CollectionDocuments, Embedding: []float32{1}},
	})

	reg := NewRegistry(store)
	if err := reg.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}

	if !reg.Has("a.txt") {
		t.Fatal("expected registry to know about a.txt after rebuild")
	}
	list := reg.List()
	if len(list) != 1 || list[0].ChunkCounts[model.CollectionDocuments] != 2 {
		t.Fatalf("unexpected inventory: %+v", list)
	}
}

func TestRegistry_RecordAndHas(t *testing.T) {
	reg := NewRegistry(repository.NewMemoryVectorStore())
	if reg.Has("b.txt") {
		t.Fatal("expected Has() false before Record")
	}
	reg.Record("b.txt", model.CollectionDocuments, 5)
	if !reg.Has("b.txt") {
		t.Fatal("expected Has() true after Record")
	}

	list := reg.List()
	if len(list) != 1 || list[0].ChunkCounts[model.CollectionDocuments] != 5 {
		t.Fatalf("unexpected inventory: %+v", list)
	}
}

func TestRegistry_Forget(t *testing.T) {
	reg := NewRegistry(repository.NewMemoryVectorStore())
	reg.Record("c.txt", model.CollectionDocuments, 1)
	reg.Forget("c.txt")
	if reg.Has("c.txt") {
		t.Fatal("expected Has() false after Forget")
	}
}

func TestRegistry_ClearAll(t *testing.T) {
	store := repository.NewMemoryVectorStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, model.CollectionDocuments, []model.Chunk{
		{ChunkID: "a.txt::documents::00000", Document: "a.txt", Embedding: []float32{1}},
	})

	reg := NewRegistry(store)
	_ = reg.Rebuild(ctx)

	counts, err := reg.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	if len(counts) != len(model.Collections) {
		t.Fatalf("expected one entry per collection, got %d", len(counts))
	}

	if reg.Has("a.txt") {
		t.Fatal("expected registry empty after ClearAll")
	}
	n, _ := store.Count(ctx, model.CollectionDocuments, nil)
	if n != 0 {
		t.Fatalf("expected store empty after ClearAll, got %d chunks", n)
	}
}

func TestRegistry_RecordFailure(t *testing.T) {
	reg := NewRegistry(repository.NewMemoryVectorStore())
	reg.RecordFailure("d.txt", "upload", errTestIngest)

	list := reg.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 entry after RecordFailure, got %d", len(list))
	}
	if list[0].FailedStage != "upload" || list[0].LastError != errTestIngest.Error() {
		t.Fatalf("unexpected failure info: %+v", list[0])
	}
}

func TestRegistry_RecordClearsPriorFailure(t *testing.T) {
	reg := NewRegistry(repository.NewMemoryVectorStore())
	reg.RecordFailure("e.txt", "upload", errTestIngest)
	reg.Record("e.txt", model.CollectionDocuments, 3)

	list := reg.List()
	if list[0].FailedStage != "" || list[0].LastError != "" {
		t.Fatalf("expected failure cleared after successful Record, got %+v", list[0])
	}
}

func TestRegistry_ListOrderedByFilename(t *testing.T) {
	reg := NewRegistry(repository.NewMemoryVectorStore())
	reg.Record("zebra.txt", model.CollectionDocuments, 1)
	reg.Record("apple.txt", model.CollectionDocuments, 1)

	list := reg.List()
	if len(list) != 2 || list[0].Filename != "apple.txt" || list[1].Filename != "zebra.txt" {
		t.Fatalf("expected sorted order, got %+v", list)
	}
}
