package blob

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore mirrors artifacts to a Google Cloud Storage bucket. Authentication
// uses Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSStore creates the client and verifies bucket access so bad
// configuration fails at startup.
func NewGCSStore(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close gcs client after attrs failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("access gcs bucket %q: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Put uploads one object; Close on the writer finalizes the upload.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	object := path.Join(s.prefix, name)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		if cerr := w.Close(); cerr != nil {
			s.logger.Warn("close gcs writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write gcs object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gcs object %s: %w", object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
