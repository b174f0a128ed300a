package filestore

import (
	"io"
)

// FileStore stores and retrieves uploaded blobs addressed by content hash.
type FileStore interface {
	// Save persists the content under the given hash. Idempotent: saving
	// an already stored hash is a no-op.
	Save(r io.Reader, hash string) error

	// Get opens the content for the given hash.
	Get(hash string) (io.ReadCloser, error)
}
