package objectstore

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests. It records download failures to
// inject and keeps a call log for assertions.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	// FailDownloads maps bucket/path keys to errors returned by Download.
	failDownloads map[string]error
	uploads       []string
}

// NewMemStore creates an empty in-memory object store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects:       make(map[string][]byte),
		types:         make(map[string]string),
		failDownloads: make(map[string]error),
	}
}

func key(bucket, path string) string { return bucket + "/" + path }

// FailDownload makes Download return err for the given object.
func (m *MemStore) FailDownload(bucket, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDownloads[key(bucket, path)] = err
}

// Uploads returns the bucket/path keys written so far, in order.
func (m *MemStore) Uploads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.uploads))
	copy(out, m.uploads)
	return out
}

func (m *MemStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := key(bucket, path)
	if err, ok := m.failDownloads[k]; ok {
		return nil, err
	}
	data, ok := m.objects[k]
	if !ok {
		return nil, ErrNotFound{Bucket: bucket, Path: path}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(bucket, path)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[k] = stored
	m.types[k] = contentType
	m.uploads = append(m.uploads, k)
	return nil
}

func (m *MemStore) Exists(ctx context.Context, bucket, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key(bucket, path)]
	return ok, nil
}

func (m *MemStore) Delete(ctx context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(bucket, path)
	if _, ok := m.objects[k]; !ok {
		return ErrNotFound{Bucket: bucket, Path: path}
	}
	delete(m.objects, k)
	delete(m.types, k)
	return nil
}

func (m *MemStore) Close() error { return nil }
