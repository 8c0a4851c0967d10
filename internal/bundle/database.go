package bundle

import (
	"time"

	"bm-go/internal/model"
)

// Database provides an interface for the relational store backing bundles,
// bundle items, content items, and users. Find methods return (nil, nil)
// when the row does not exist.
type Database interface {
	// User operations.
	CreateUser(user *model.User) error
	FindUserByID(id string) (*model.User, error)

	// Bundle operations.
	CreateBundle(bundle *model.Bundle) error
	FindBundleByID(id string) (*model.Bundle, error)
	FindBundleBySlug(slug string) (*model.Bundle, error)
	ListBundles(limit int) ([]*model.Bundle, error)

	// UpdateBundleCounters writes the denormalized item counters and bumps
	// the bundle's updated_at to updatedAt.
	UpdateBundleCounters(bundleID string, racks, presets, sessions int, updatedAt time.Time) error

	// ClearBundleArchiveTimestamp nulls archive_updated_at, marking the
	// recorded archive stale. The archive blob itself is left in place.
	ClearBundleArchiveTimestamp(bundleID string) error

	// UpdateBundleArchive records a freshly built archive. Both
	// archive_updated_at and updated_at are set to updatedAt so the
	// freshness comparison holds immediately after the write.
	UpdateBundleArchive(bundleID, archivePath, archiveHash string, archiveSize int64, updatedAt time.Time) error

	IncrementBundleDownloads(bundleID string) error

	// Bundle item operations. All lookups are scoped to a bundle.
	CreateBundleItem(item *model.BundleItem) error
	FindBundleItem(bundleID, bundleItemID string) (*model.BundleItem, error)
	DeleteBundleItem(bundleID, bundleItemID string) error
	UpdateBundleItemPosition(bundleID, bundleItemID string, position int) error

	// FindBundleItemsByType returns a bundle's items of one type ordered
	// by position.
	FindBundleItemsByType(bundleID string, itemType ItemType) ([]*model.BundleItem, error)

	// CountBundleItemsByType groups a bundle's items by type and counts
	// each group.
	CountBundleItemsByType(bundleID string) (map[ItemType]int, error)

	IncrementBundleItemDownloads(bundleItemID string) error

	// Content item operations. itemType selects the backing table.
	CreateContentItem(item *model.ContentItem) error
	FindContentItem(itemType ItemType, id string) (*model.ContentItem, error)
	IncrementContentItemDownloads(itemType ItemType, id string) error

	// BundleStatistics aggregates counts across all bundles.
	BundleStatistics() (*model.BundleStatistics, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// MigrateUp brings the schema to the latest version.
	MigrateUp() error

	Close() error
}
