package gcpclient

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// StorageAdapter wraps the GCS client as an optional mirror of raw
// uploaded bytes, keyed by documents/<filename>. Used only when
// GCS_BUCKET_NAME is configured; ingestion does not depend on it.
type StorageAdapter struct {
	client *storage.Client
	bucket string
}

// NewStorageAdapter creates a StorageAdapter bound to bucket.
func NewStorageAdapter(ctx context.Context, bucket string) (*StorageAdapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewStorageAdapter: %w", err)
	}
	return &StorageAdapter{client: client, bucket: bucket}, nil
}

// objectKey returns the documents/<filename> key the mirror uses.
func objectKey(filename string) string {
	return "documents/" + filename
}

// Upload writes the original uploaded bytes for filename to the mirror.
func (a *StorageAdapter) Upload(ctx context.Context, filename string, data []byte, contentType string) error {
	w := a.client.Bucket(a.bucket).Object(objectKey(filename)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcpclient.Upload write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcpclient.Upload close: %w", err)
	}
	return nil
}

// Download reads the mirrored bytes for filename back from GCS.
func (a *StorageAdapter) Download(ctx context.Context, filename string) ([]byte, error) {
	r, err := a.client.Bucket(a.bucket).Object(objectKey(filename)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Download: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Delete removes the mirrored object for filename, if present.
func (a *StorageAdapter) Delete(ctx context.Context, filename string) error {
	if err := a.client.Bucket(a.bucket).Object(objectKey(filename)).Delete(ctx); err != nil {
		return fmt.Errorf("gcpclient.Delete: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (a *StorageAdapter) Close() {
	a.client.Close()
}
