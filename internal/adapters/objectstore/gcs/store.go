package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// Store uploads attachments into a single Cloud Storage bucket.
type Store struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewStore creates a GCS-backed object store. baseURL overrides the public URL
// prefix; empty means https://storage.googleapis.com/<bucket>.
func NewStore(ctx context.Context, bucket, baseURL string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required for GCS store")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *Store) UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
