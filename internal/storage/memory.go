package storage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"bm-go/internal/bundle"
)

// MemoryStore is an in-memory implementation of the BlobStore interface,
// useful for testing. Safe for concurrent use.
type MemoryStore struct {
	blobs map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Exists reports whether a blob is present at the given path.
func (m *MemoryStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[path]
	return ok, nil
}

// Get retrieves the blob at path and writes it to w.
func (m *MemoryStore) Get(path string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[path]
	if !ok {
		return fmt.Errorf("blob not found: %s", path)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// Put stores a blob at path, overwriting any existing blob.
func (m *MemoryStore) Put(path string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[path] = data
	return nil
}

// TemporaryURL returns a fake memory:// URL carrying the expiry, so tests
// can assert on the TTL a caller requested.
func (m *MemoryStore) TemporaryURL(path string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.blobs[path]; !ok {
		return "", fmt.Errorf("blob not found: %s", path)
	}
	return fmt.Sprintf("memory://%s?ttl=%s", path, ttl), nil
}

// Delete removes a blob. Test helper; not part of the BlobStore interface.
func (m *MemoryStore) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
}

// Compile-time check that MemoryStore implements bundle.BlobStore
var _ bundle.BlobStore = (*MemoryStore)(nil)
