package service

import (
	"context"
	"fmt"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// DefaultEmbedBatchSize is the number of texts embedded per upstream
// call when the caller does not override it.
const DefaultEmbedBatchSize = 96

// EmbeddingClient is the thin upstream wrapper (C1). Implementations
// retry transient failures internally and return
// apperr.ErrUpstreamUnavailable once retries are exhausted.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder batches text through an EmbeddingClient and validates that
// every returned vector has the configured dimensionality.
type Embedder struct {
	client    EmbeddingClient
	batchSize int
	dims      int
}

// NewEmbedder creates an Embedder. batchSize defaults to
// DefaultEmbedBatchSize when zero or negative.
func NewEmbedder(client EmbeddingClient, batchSize, dims int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Embedder{client: client, batchSize: batchSize, dims: dims}
}

// Embed converts texts to vectors, batching internally. The returned
// slice has exactly len(texts) entries, each of the configured
// dimension, or an error.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.client.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "embed", err)
		}
		if len(batch) != end-start {
			return nil, apperr.Stage(apperr.ErrInternal, "embed",
				fmt.Errorf("embedding count mismatch: want %d, got %d", end-start, len(batch)))
		}
		if e.dims > 0 {
			for _, v := range batch {
				if len(v) != e.dims {
					return nil, apperr.Stage(apperr.ErrInternal, "embed",
						fmt.Errorf("embedding dimension mismatch: want %d, got %d", e.dims, len(v)))
				}
			}
		}

		vectors = append(vectors, batch...)
	}

	return vectors, nil
}
