package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bm-go/internal/bundle"
)

// FileSystemStore is a filesystem-based implementation of the BlobStore
// interface. Blob paths map directly to files under the root directory.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a new filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) localPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Exists reports whether a blob is present at the given path.
func (s *FileSystemStore) Exists(path string) (bool, error) {
	info, err := os.Stat(s.localPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return !info.IsDir(), nil
}

// Get retrieves the blob at path and writes it to w.
func (s *FileSystemStore) Get(path string, w io.Writer) error {
	f, err := os.Open(s.localPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob not found: %s", path)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	return nil
}

// Put stores a blob at path using atomic write (temp file + rename).
func (s *FileSystemStore) Put(path string, r io.Reader, size int64) error {
	destPath := s.localPath(path)

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// TemporaryURL returns a file:// URL to the blob. Local filesystems have no
// expiry mechanism, so ttl is ignored; this exists so local setups can
// still resolve download URLs.
func (s *FileSystemStore) TemporaryURL(path string, ttl time.Duration) (string, error) {
	localPath := s.localPath(path)
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob not found: %s", path)
		}
		return "", fmt.Errorf("stat blob: %w", err)
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("resolving blob path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Compile-time check that FileSystemStore implements bundle.BlobStore
var _ bundle.BlobStore = (*FileSystemStore)(nil)
