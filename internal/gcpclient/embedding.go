package gcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"
)

// EmbeddingAdapter calls the Vertex AI text embedding REST API. It is
// scoped into document- and query-facing views via AsDocumentEmbedder
// and AsQueryEmbedder, since text-embedding-004 produces different
// vector spaces depending on task_type.
type EmbeddingAdapter struct {
	project  string
	location string
	model    string
	client   *http.Client
}

// NewEmbeddingAdapter creates an EmbeddingAdapter using default credentials.
func NewEmbeddingAdapter(ctx context.Context, project, location, model string) (*EmbeddingAdapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewEmbeddingAdapter: %w", err)
	}
	return &EmbeddingAdapter{
		project:  project,
		location: location,
		model:    model,
		client:   client,
	}, nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// scopedEmbedder pins an EmbeddingAdapter to a single task_type so it
// satisfies service.EmbeddingClient's single-method interface. Document
// chunks are embedded with RETRIEVAL_DOCUMENT during ingestion, search
// queries with RETRIEVAL_QUERY, per the model's asymmetric retrieval design.
type scopedEmbedder struct {
	adapter  *EmbeddingAdapter
	taskType string
}

// Embed satisfies service.EmbeddingClient.
func (s *scopedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "Embed:"+s.taskType, func() ([][]float32, error) {
		return s.adapter.doEmbed(ctx, texts, s.taskType)
	})
}

// AsDocumentEmbedder returns the view used when ingesting document,
// logical summary, or paragraph summary chunks.
func (a *EmbeddingAdapter) AsDocumentEmbedder() *scopedEmbedder {
	return &scopedEmbedder{adapter: a, taskType: "RETRIEVAL_DOCUMENT"}
}

// AsQueryEmbedder returns the view used when embedding a search query.
func (a *EmbeddingAdapter) AsQueryEmbedder() *scopedEmbedder {
	return &scopedEmbedder{adapter: a, taskType: "RETRIEVAL_QUERY"}
}

func (a *EmbeddingAdapter) doEmbed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: taskType}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("gcpclient.doEmbed marshal: %w", err)
	}

	url := a.buildEndpointURL()

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.doEmbed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.doEmbed call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gcpclient.doEmbed: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("gcpclient.doEmbed decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, p := range embResp.Predictions {
		results[i] = p.Embeddings.Values
	}
	return results, nil
}

// buildEndpointURL returns the correct Vertex AI endpoint URL.
// For "global" location, uses the non-regional endpoint.
func (a *EmbeddingAdapter) buildEndpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}

// HealthCheck validates the embedding service connection.
func (a *EmbeddingAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.AsQueryEmbedder().Embed(ctx, []string{"health check"})
	if err != nil {
		return fmt.Errorf("embedding health check failed: %w", err)
	}
	return nil
}
