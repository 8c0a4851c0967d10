package bundle

import (
	"fmt"
	"io"
	"time"

	"bm-go/internal/model"
)

const (
	// DefaultMaxArchiveSize caps assembled archives at 500MB.
	DefaultMaxArchiveSize = 500 * 1024 * 1024

	bundleURLTTL = 10 * time.Minute
	itemURLTTL   = 5 * time.Minute
)

// ArchiveOptions tunes archive construction.
type ArchiveOptions struct {
	// MaxSize is the maximum archive size in bytes.
	// Zero means DefaultMaxArchiveSize.
	MaxSize int64

	// ScratchDir is where partial archives are assembled before upload.
	// Empty means the OS temp directory.
	ScratchDir string
}

// BundleService is the orchestration layer for bundle management: item
// attachment, counter maintenance, archive construction and freshness
// tracking, and download accounting.
type BundleService struct {
	database Database
	private  BlobStore // archives and source payloads
	public   BlobStore // cover images and preview audio
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	maxArchiveSize int64
	scratchDir     string
	builds         *buildLocks
}

// NewBundleService creates a new BundleService with the provided dependencies.
func NewBundleService(database Database, private, public BlobStore, logger Logger, clock Clock, idgen IDGenerator, opts ArchiveOptions) *BundleService {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxArchiveSize
	}
	return &BundleService{
		database:       database,
		private:        private,
		public:         public,
		logger:         logger,
		clock:          clock,
		idgen:          idgen,
		maxArchiveSize: maxSize,
		scratchDir:     opts.ScratchDir,
		builds:         newBuildLocks(),
	}
}

// NewBundle holds the caller-supplied attributes for a new bundle.
type NewBundle struct {
	UserID      string
	Title       string
	Description string

	BundleType      string // defaults to "production"
	Genre           string
	Category        string
	DifficultyLevel string // defaults to "intermediate"

	IsFree                   bool
	AllowIndividualDownloads bool

	HowToArticle     string
	CoverImagePath   string
	PreviewAudioPath string
}

// NewItem describes one content item to attach to a bundle.
type NewItem struct {
	Type              string // "rack", "preset", or "session"
	ID                string
	Position          int
	Section           string
	Notes             string
	UsageInstructions string
	IsRequired        bool
	Downloadable      bool // permit individual download of this item
}

// CreateBundle constructs a bundle with a generated UUID and slug, status
// "draft", and optionally attaches an initial item list in one operation.
func (s *BundleService) CreateBundle(attrs NewBundle, items []NewItem) (*model.Bundle, error) {
	s.logger.Info("creating bundle", "title", attrs.Title)

	b, err := s.createBundle(attrs, items)
	if err != nil {
		s.logger.Error("failed to create bundle", "title", attrs.Title, "error", err)
		return nil, err
	}

	s.logger.Info("bundle created", "bundle_id", b.ID)
	return b, nil
}

func (s *BundleService) createBundle(attrs NewBundle, items []NewItem) (*model.Bundle, error) {
	now := s.clock.Now()

	b := &model.Bundle{
		ID:                       s.idgen.New(),
		UUID:                     s.idgen.New(),
		UserID:                   attrs.UserID,
		Title:                    attrs.Title,
		Slug:                     MakeSlug(attrs.Title),
		Description:              attrs.Description,
		BundleType:               attrs.BundleType,
		Genre:                    attrs.Genre,
		Category:                 attrs.Category,
		DifficultyLevel:          attrs.DifficultyLevel,
		Status:                   "draft",
		IsFree:                   attrs.IsFree,
		AllowIndividualDownloads: attrs.AllowIndividualDownloads,
		HowToArticle:             attrs.HowToArticle,
		CoverImagePath:           attrs.CoverImagePath,
		PreviewAudioPath:         attrs.PreviewAudioPath,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if b.BundleType == "" {
		b.BundleType = "production"
	}
	if b.DifficultyLevel == "" {
		b.DifficultyLevel = "intermediate"
	}

	if err := s.database.CreateBundle(b); err != nil {
		return nil, fmt.Errorf("creating bundle: %w", err)
	}

	for _, item := range items {
		if _, err := s.AddItem(b, item); err != nil {
			return nil, err
		}
	}

	if err := s.updateCounters(b); err != nil {
		return nil, err
	}

	return b, nil
}

// AddItem attaches a content item to the bundle. The item must be owned by
// the bundle's user or be publicly visible. On success the bundle's
// counters are recomputed and any existing archive is marked stale.
func (s *BundleService) AddItem(b *model.Bundle, item NewItem) (*model.BundleItem, error) {
	itemType, err := ParseItemType(item.Type)
	if err != nil {
		return nil, err
	}

	content, err := s.database.FindContentItem(itemType, item.ID)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", itemType, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%s %s: %w", itemType, item.ID, ErrNotFound)
	}

	if content.UserID != b.UserID && !content.IsPublic {
		return nil, ErrPrivateItem
	}

	bi := &model.BundleItem{
		ID:                         s.idgen.New(),
		BundleID:                   b.ID,
		ItemType:                   itemType.String(),
		ItemID:                     content.ID,
		Position:                   item.Position,
		Section:                    item.Section,
		Notes:                      item.Notes,
		UsageInstructions:          item.UsageInstructions,
		IsRequired:                 item.IsRequired,
		IsDownloadableIndividually: item.Downloadable,
		CreatedAt:                  s.clock.Now(),
	}
	if err := s.database.CreateBundleItem(bi); err != nil {
		return nil, fmt.Errorf("creating bundle item: %w", err)
	}

	if err := s.updateCounters(b); err != nil {
		return nil, err
	}
	if err := s.markArchiveStale(b); err != nil {
		return nil, err
	}

	return bi, nil
}

// RemoveItem detaches a bundle item. The lookup is scoped to the bundle;
// an item belonging to a different bundle is not found.
func (s *BundleService) RemoveItem(b *model.Bundle, bundleItemID string) error {
	bi, err := s.database.FindBundleItem(b.ID, bundleItemID)
	if err != nil {
		return fmt.Errorf("finding bundle item: %w", err)
	}
	if bi == nil {
		return fmt.Errorf("bundle item %s: %w", bundleItemID, ErrNotFound)
	}

	if err := s.database.DeleteBundleItem(b.ID, bundleItemID); err != nil {
		return fmt.Errorf("deleting bundle item: %w", err)
	}

	if err := s.updateCounters(b); err != nil {
		return err
	}
	return s.markArchiveStale(b)
}

// ReorderItems applies new positions to the named bundle items. Gaps and
// collisions in position values are the caller's responsibility.
func (s *BundleService) ReorderItems(b *model.Bundle, positions map[string]int) error {
	for itemID, position := range positions {
		if err := s.database.UpdateBundleItemPosition(b.ID, itemID, position); err != nil {
			return fmt.Errorf("updating position of bundle item %s: %w", itemID, err)
		}
	}
	return s.markArchiveStale(b)
}

// BundleDownloadURL rebuilds the archive if it is stale, then issues a
// short-lived signed URL to the archive blob. The rebuild runs inline, so
// the first download after a content change is a slow path.
func (s *BundleService) BundleDownloadURL(b *model.Bundle) (string, error) {
	current, err := s.isArchiveCurrent(b)
	if err != nil {
		return "", err
	}
	if !current {
		if _, err := s.BuildArchive(b, false); err != nil {
			return "", err
		}
	}

	url, err := s.private.TemporaryURL(b.ArchivePath, bundleURLTTL)
	if err != nil {
		return "", fmt.Errorf("signing archive URL: %w", err)
	}
	return url, nil
}

// DownloadArchiveTo rebuilds the archive if it is stale, then streams its
// bytes to w. Used where no URL-capable store is configured.
func (s *BundleService) DownloadArchiveTo(b *model.Bundle, w io.Writer) error {
	current, err := s.isArchiveCurrent(b)
	if err != nil {
		return err
	}
	if !current {
		if _, err := s.BuildArchive(b, false); err != nil {
			return err
		}
	}

	if err := s.private.Get(b.ArchivePath, w); err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	return nil
}

// ItemDownloadURL issues a short-lived signed URL directly to a bundle
// item's underlying file, bypassing the archive.
func (s *BundleService) ItemDownloadURL(bi *model.BundleItem) (string, error) {
	if !bi.IsDownloadableIndividually {
		return "", ErrDownloadNotAllowed
	}

	itemType, err := ParseItemType(bi.ItemType)
	if err != nil {
		return "", err
	}
	content, err := s.database.FindContentItem(itemType, bi.ItemID)
	if err != nil {
		return "", fmt.Errorf("finding %s: %w", itemType, err)
	}
	if content == nil {
		return "", fmt.Errorf("%s %s: %w", itemType, bi.ItemID, ErrNotFound)
	}

	url, err := s.private.TemporaryURL(content.FilePath, itemURLTTL)
	if err != nil {
		return "", fmt.Errorf("signing item URL: %w", err)
	}
	return url, nil
}

// RecordBundleDownload increments the bundle's download counter. Counters
// are analytics; concurrent increments race benignly.
func (s *BundleService) RecordBundleDownload(b *model.Bundle) error {
	if err := s.database.IncrementBundleDownloads(b.ID); err != nil {
		return fmt.Errorf("recording bundle download: %w", err)
	}
	b.DownloadsCount++

	s.logger.Info("bundle download recorded", "bundle_id", b.ID)
	return nil
}

// RecordItemDownload increments the bundle item's individual download
// counter and the underlying content item's own counter.
func (s *BundleService) RecordItemDownload(bi *model.BundleItem) error {
	if err := s.database.IncrementBundleItemDownloads(bi.ID); err != nil {
		return fmt.Errorf("recording item download: %w", err)
	}
	bi.IndividualDownloadsCount++

	itemType, err := ParseItemType(bi.ItemType)
	if err != nil {
		return err
	}
	if err := s.database.IncrementContentItemDownloads(itemType, bi.ItemID); err != nil {
		return fmt.Errorf("recording content download: %w", err)
	}

	s.logger.Info("bundle item download recorded", "bundle_item_id", bi.ID)
	return nil
}

// Statistics aggregates counts across all bundles.
func (s *BundleService) Statistics() (*model.BundleStatistics, error) {
	stats, err := s.database.BundleStatistics()
	if err != nil {
		return nil, fmt.Errorf("computing bundle statistics: %w", err)
	}
	return stats, nil
}

// updateCounters recomputes the denormalized item counters from the live
// bundle items. Always O(items-in-bundle); a crash mid-mutation cannot
// leave stale counts beyond the next recompute.
func (s *BundleService) updateCounters(b *model.Bundle) error {
	counts, err := s.database.CountBundleItemsByType(b.ID)
	if err != nil {
		return fmt.Errorf("counting bundle items: %w", err)
	}

	racks := counts[ItemTypeRack]
	presets := counts[ItemTypePreset]
	sessions := counts[ItemTypeSession]

	now := s.clock.Now()
	if err := s.database.UpdateBundleCounters(b.ID, racks, presets, sessions, now); err != nil {
		return fmt.Errorf("updating bundle counters: %w", err)
	}

	b.RacksCount = racks
	b.PresetsCount = presets
	b.SessionsCount = sessions
	b.TotalItemsCount = racks + presets + sessions
	b.UpdatedAt = now
	return nil
}

// markArchiveStale clears archive_updated_at so the next download triggers
// a rebuild. Only the timestamp is cleared; the blob stays in place so an
// in-flight download of the old archive keeps working.
func (s *BundleService) markArchiveStale(b *model.Bundle) error {
	if b.ArchivePath == "" {
		return nil
	}
	if err := s.database.ClearBundleArchiveTimestamp(b.ID); err != nil {
		return fmt.Errorf("marking archive stale: %w", err)
	}
	b.ArchiveUpdatedAt = nil
	return nil
}

// isArchiveCurrent reports whether the recorded archive still reflects the
// bundle's content. Any bundle row touch invalidates the archive via the
// updated_at comparison, not just item changes.
func (s *BundleService) isArchiveCurrent(b *model.Bundle) (bool, error) {
	if b.ArchivePath == "" || b.ArchiveUpdatedAt == nil {
		return false, nil
	}

	exists, err := s.private.Exists(b.ArchivePath)
	if err != nil {
		return false, fmt.Errorf("checking archive blob: %w", err)
	}
	if !exists {
		return false, nil
	}

	return !b.ArchiveUpdatedAt.Before(b.UpdatedAt), nil
}
