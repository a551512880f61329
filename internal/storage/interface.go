package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object storage operations the training
// dispatcher needs: staging objects by key into one bucket.
type ObjectStorage interface {
	// EnsureBucket creates the bucket if it doesn't exist
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// URL returns the bucket-qualified location of an object, as passed to
	// the execution backend.
	URL(key string) string
}
