package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FSStore is a filesystem-based implementation of Store.
// It lays objects out under a base directory, one subtree per bucket:
//
//	.docweaver/
//	  content/
//	    proj_1/session_a/iteration_1/thesis/raw_responses/...
//	  templates/
//	    thesis/thesis_business_case.md
//
// A sidecar .meta.json next to each object records content type and
// write time.
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

type fsObjectMeta struct {
	ContentType string    `json:"content_type"`
	WrittenAt   time.Time `json:"written_at"`
	Size        int64     `json:"size"`
}

// NewFSStore creates a new filesystem-based object store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Download returns the full content of an object.
func (fs *FSStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Bucket: bucket, Path: path}
		}
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// Upload stores an object, replacing any existing content at the path.
// The write goes through a temp file and rename so a concurrent reader never
// observes a partially written object.
func (fs *FSStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("write object %s/%s: %w", bucket, path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize object %s/%s: %w", bucket, path, err)
	}

	meta := fsObjectMeta{ContentType: contentType, WrittenAt: time.Now(), Size: int64(len(data))}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal object metadata: %w", err)
	}
	if err := os.WriteFile(full+".meta.json", metaBytes, 0640); err != nil {
		return fmt.Errorf("write object metadata: %w", err)
	}
	return nil
}

// Exists checks if an object exists.
func (fs *FSStore) Exists(ctx context.Context, bucket, path string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s/%s: %w", bucket, path, err)
	}
	return true, nil
}

// Delete removes an object and its metadata sidecar.
func (fs *FSStore) Delete(ctx context.Context, bucket, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Bucket: bucket, Path: path}
		}
		return fmt.Errorf("delete object %s/%s: %w", bucket, path, err)
	}
	_ = os.Remove(full + ".meta.json") // Best effort; object itself is gone
	return nil
}

// Close releases resources (none held for the filesystem store).
func (fs *FSStore) Close() error { return nil }

// objectPath resolves bucket+path inside the base directory, rejecting
// traversal outside of it.
func (fs *FSStore) objectPath(bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", fmt.Errorf("bucket and path are required")
	}
	full := filepath.Join(fs.basePath, bucket, filepath.FromSlash(path))
	base := filepath.Clean(fs.basePath) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(full)+string(os.PathSeparator), base) {
		return "", fmt.Errorf("object path escapes store root: %s/%s", bucket, path)
	}
	return full, nil
}
