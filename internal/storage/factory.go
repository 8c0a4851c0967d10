package storage

import (
	"fmt"

	"bm-go/internal/bundle"
	"bm-go/internal/config"
)

// NewStoreFromConfig creates a BlobStore implementation based on the
// storage config type.
func NewStoreFromConfig(cfg config.StorageConfig) (bundle.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
