package model

import "time"

// Bundle is a named collection of racks, presets, and sessions distributed
// together as one downloadable package.
type Bundle struct {
	ID   string // UUID, primary key
	UUID string // Public-facing UUID, used in archive filenames and URLs

	UserID      string // Owning user
	Title       string
	Slug        string // URL-safe, derived from title
	Description string

	BundleType      string // e.g. "production", "template"
	Genre           string
	Category        string
	DifficultyLevel string // "beginner", "intermediate", "advanced"

	Status                   string // "draft" or "published"
	IsPublic                 bool
	IsFeatured               bool
	IsFree                   bool
	AllowIndividualDownloads bool

	HowToArticle     string // Free-text tutorial; becomes TUTORIAL.md when set
	CoverImagePath   string // Public storage path
	PreviewAudioPath string // Public storage path

	// Denormalized item counters, recomputed after every item mutation.
	RacksCount      int
	PresetsCount    int
	SessionsCount   int
	TotalItemsCount int
	DownloadsCount  int64

	// Archive metadata. The archive is current iff ArchivePath is set, the
	// blob exists in storage, and ArchiveUpdatedAt >= UpdatedAt.
	ArchivePath      string
	ArchiveHash      string // SHA-256 of the archive content
	ArchiveSize      int64
	ArchiveUpdatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BundleItem attaches one content item to one bundle, with its own ordering
// and per-item settings. It does not own the content item's lifecycle.
type BundleItem struct {
	ID       string // UUID
	BundleID string // Foreign key to Bundle
	ItemType string // "rack", "preset", or "session"
	ItemID   string // Foreign key into the table named by ItemType

	Position          int
	Section           string // Optional grouping label
	Notes             string
	UsageInstructions string
	IsRequired        bool

	IsDownloadableIndividually bool
	IndividualDownloadsCount   int64

	CreatedAt time.Time
}

// ContentItem is a rack, preset, or session row. The three tables share the
// same shape; Type records which table the row came from. The bundle
// subsystem treats content items as read-only except for download counting.
type ContentItem struct {
	ID             string // UUID
	Type           string // "rack", "preset", or "session"
	UserID         string
	Title          string
	FilePath       string // Private storage path to the binary payload
	IsPublic       bool
	DownloadsCount int64
	CreatedAt      time.Time
}

// User holds the minimum account data the bundle subsystem needs: the
// display name used in generated documentation.
type User struct {
	ID        string // UUID
	Name      string
	CreatedAt time.Time
}

// BundleStatistics is an aggregate snapshot across all bundles.
type BundleStatistics struct {
	TotalBundles    int64
	PublicBundles   int64
	FeaturedBundles int64
	TotalDownloads  int64
	BundlesByType   map[string]int64
}
