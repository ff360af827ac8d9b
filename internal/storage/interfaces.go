// Package storage defines interfaces for certificate blob storage backends.
// The database row is the source of truth for a certificate's existence;
// the backend only persists and serves the document bytes under an opaque
// path assigned at upload time.
package storage

import (
	"context"
	"io"
)

// Backend defines the interface for blob storage backends.
// Implementations can include local filesystem, S3, or other object stores.
type Backend interface {
	// Save stores content from a reader under the given path.
	// Returns the number of bytes written.
	Save(ctx context.Context, path string, reader io.Reader) (int64, error)

	// Load retrieves content by path.
	// Returns a ReadCloser that must be closed after use.
	// Returns domain.ErrBlobNotFound if the path does not exist.
	Load(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes content by path. Deleting a missing path is not an
	// error; blob deletion after a committed row delete is best effort.
	Delete(ctx context.Context, path string) error

	// Exists checks whether content is stored under the path.
	Exists(ctx context.Context, path string) (bool, error)
}
