// Package objectstore provides byte-level artifact storage addressed by
// bucket and path. Fragments are written once; rendered documents occupy a
// deterministic path and are overwritten on every successful render.
package objectstore

import (
	"context"
)

// Store is the object store gateway used by the file gateway, the resolver,
// and the render worker.
type Store interface {
	// Download returns the full content of an object.
	// Returns ErrNotFound if the object doesn't exist.
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Upload stores an object, replacing any existing content at the path.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, bucket, path string) (bool, error)

	// Delete removes an object. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, bucket, path string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Bucket string
	Path   string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Bucket + "/" + e.Path
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
