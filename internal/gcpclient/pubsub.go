package gcpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// IngestionEvent is published after each pipeline stage transition
// (basic ingest, logical summaries, paragraph summaries) when
// PUBSUB_TOPIC_ID is configured. Purely informational: no consumer in
// this repo depends on delivery.
type IngestionEvent struct {
	Document   string `json:"document"`
	Stage      string `json:"stage"`
	ChunkCount int    `json:"chunk_count"`
}

// PubSubAdapter wraps a Cloud Pub/Sub topic publisher.
type PubSubAdapter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubAdapter creates a PubSubAdapter bound to topicID in project.
func NewPubSubAdapter(ctx context.Context, project, topicID string) (*PubSubAdapter, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewPubSubAdapter: %w", err)
	}
	return &PubSubAdapter{client: client, topic: client.Topic(topicID)}, nil
}

// PublishIngestionEvent publishes a stage-transition event for document
// at stage, having just produced chunkCount chunks. Failures are
// returned but do not roll back the ingestion step that caused them.
func (a *PubSubAdapter) PublishIngestionEvent(ctx context.Context, document, stage string, chunkCount int) error {
	event := IngestionEvent{Document: document, Stage: stage, ChunkCount: chunkCount}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("gcpclient.PublishIngestionEvent marshal: %w", err)
	}
	result := a.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("gcpclient.PublishIngestionEvent: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying topic and client.
func (a *PubSubAdapter) Close() {
	a.topic.Stop()
	a.client.Close()
}
