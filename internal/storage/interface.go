package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations.
// The pipeline only downloads; upload, rename and delete exist for the
// producer flow and the filename-sanitization repair.
type ObjectStorage interface {
	// EnsureBucket creates the bucket if it does not exist
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Rename copies an object to newKey and then best-effort deletes the
	// old key. The copy must succeed; a failed delete of the old object
	// is not an error.
	Rename(ctx context.Context, oldKey, newKey string) error
}
