package repository

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for the snapshot object store.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// Upload stores an object, replacing any previous object under key.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Download retrieves an object from the storage.
	// Caller is responsible for closing the returned ReadCloser.
	// Returns ErrObjectNotFound if the key does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}
