package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// fakeEmbeddingClient implements EmbeddingClient for testing.
type fakeEmbeddingClient struct {
	dims  int
	err   error
	calls int
}

func (f *fakeEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	dims := f.dims
	if dims == 0 {
		dims = 768
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dims)
		vec[0] = float32(i + 1)
		result[i] = vec
	}
	return result, nil
}

func TestEmbedder_Success(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 768}
	e := NewEmbedder(client, 96, 768)

	vectors, err := e.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if len(vectors[0]) != 768 {
		t.Errorf("vector dims = %d, want 768", len(vectors[0]))
	}
}

func TestEmbedder_Batching(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 768}
	e := NewEmbedder(client, 96, 768)

	texts := make([]string, 300)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 300 {
		t.Errorf("expected 300 vectors, got %d", len(vectors))
	}
	// 300 texts at batch size 96 requires 4 calls (96+96+96+12)
	if client.calls != 4 {
		t.Errorf("expected 4 API calls, got %d", client.calls)
	}
}

func TestEmbedder_ExactBatchBoundary(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 768}
	e := NewEmbedder(client, 96, 768)

	texts := make([]string, 96)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 96 {
		t.Errorf("expected 96 vectors, got %d", len(vectors))
	}
	if client.calls != 1 {
		t.Errorf("expected 1 API call, got %d", client.calls)
	}
}

func TestEmbedder_DefaultBatchSize(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 768}
	e := NewEmbedder(client, 0, 768)
	if e.batchSize != DefaultEmbedBatchSize {
		t.Errorf("batchSize = %d, want %d", e.batchSize, DefaultEmbedBatchSize)
	}
}

func TestEmbedder_EmptyInput(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := NewEmbedder(client, 96, 768)

	vectors, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() should not error on empty input: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", vectors)
	}
}

func TestEmbedder_ClientError(t *testing.T) {
	client := &fakeEmbeddingClient{err: fmt.Errorf("upstream unavailable")}
	e := NewEmbedder(client, 96, 768)

	_, err := e.Embed(context.Background(), []string{"test"})
	if err == nil {
		t.Fatal("expected error when client fails")
	}
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestEmbedder_WrongDimensions(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 512}
	e := NewEmbedder(client, 96, 768)

	_, err := e.Embed(context.Background(), []string{"test"})
	if err == nil {
		t.Fatal("expected error for wrong dimensions")
	}
	if !errors.Is(err, apperr.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}
