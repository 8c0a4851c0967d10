package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bm-go/internal/bundle"
	"bm-go/internal/database/migrations"
	"bm-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the bundle.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:   db,
		path: "",
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single pooled connection keeps the PRAGMA below in effect for every
	// statement and keeps :memory: databases from resetting per connection.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// contentTable maps an item type to its backing table.
func contentTable(itemType bundle.ItemType) (string, error) {
	switch itemType {
	case bundle.ItemTypeRack:
		return "racks", nil
	case bundle.ItemTypePreset:
		return "presets", nil
	case bundle.ItemTypeSession:
		return "sessions", nil
	default:
		return "", fmt.Errorf("%w: %s", bundle.ErrUnknownItemType, itemType)
	}
}

// User operations

func (s *SQLiteDatabase) CreateUser(user *model.User) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Name, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindUserByID(id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(context.Background(),
		`SELECT id, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return &u, nil
}

// Bundle operations

const bundleColumns = `id, uuid, user_id, title, slug, description,
	bundle_type, genre, category, difficulty_level, status,
	is_public, is_featured, is_free, allow_individual_downloads,
	how_to_article, cover_image_path, preview_audio_path,
	racks_count, presets_count, sessions_count, total_items_count, downloads_count,
	archive_path, archive_hash, archive_size, archive_updated_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBundle(row rowScanner) (*model.Bundle, error) {
	var b model.Bundle
	var archiveUpdatedAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.UUID, &b.UserID, &b.Title, &b.Slug, &b.Description,
		&b.BundleType, &b.Genre, &b.Category, &b.DifficultyLevel, &b.Status,
		&b.IsPublic, &b.IsFeatured, &b.IsFree, &b.AllowIndividualDownloads,
		&b.HowToArticle, &b.CoverImagePath, &b.PreviewAudioPath,
		&b.RacksCount, &b.PresetsCount, &b.SessionsCount, &b.TotalItemsCount, &b.DownloadsCount,
		&b.ArchivePath, &b.ArchiveHash, &b.ArchiveSize, &archiveUpdatedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if archiveUpdatedAt.Valid {
		t := archiveUpdatedAt.Time
		b.ArchiveUpdatedAt = &t
	}
	return &b, nil
}

func (s *SQLiteDatabase) CreateBundle(b *model.Bundle) error {
	var archiveUpdatedAt sql.NullTime
	if b.ArchiveUpdatedAt != nil {
		archiveUpdatedAt = sql.NullTime{Time: *b.ArchiveUpdatedAt, Valid: true}
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO bundles (`+bundleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UUID, b.UserID, b.Title, b.Slug, b.Description,
		b.BundleType, b.Genre, b.Category, b.DifficultyLevel, b.Status,
		b.IsPublic, b.IsFeatured, b.IsFree, b.AllowIndividualDownloads,
		b.HowToArticle, b.CoverImagePath, b.PreviewAudioPath,
		b.RacksCount, b.PresetsCount, b.SessionsCount, b.TotalItemsCount, b.DownloadsCount,
		b.ArchivePath, b.ArchiveHash, b.ArchiveSize, archiveUpdatedAt,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindBundleByID(id string) (*model.Bundle, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+bundleColumns+` FROM bundles WHERE id = ?`, id)
	b, err := scanBundle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding bundle by id: %w", err)
	}
	return b, nil
}

func (s *SQLiteDatabase) FindBundleBySlug(slug string) (*model.Bundle, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+bundleColumns+` FROM bundles WHERE slug = ? ORDER BY created_at LIMIT 1`, slug)
	b, err := scanBundle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding bundle by slug: %w", err)
	}
	return b, nil
}

func (s *SQLiteDatabase) ListBundles(limit int) ([]*model.Bundle, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+bundleColumns+` FROM bundles ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()

	var result []*model.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) UpdateBundleCounters(bundleID string, racks, presets, sessions int, updatedAt time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundles
		 SET racks_count = ?, presets_count = ?, sessions_count = ?,
		     total_items_count = ?, updated_at = ?
		 WHERE id = ?`,
		racks, presets, sessions, racks+presets+sessions, updatedAt, bundleID)
	if err != nil {
		return fmt.Errorf("updating bundle counters: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ClearBundleArchiveTimestamp(bundleID string) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundles SET archive_updated_at = NULL WHERE id = ?`, bundleID)
	if err != nil {
		return fmt.Errorf("clearing archive timestamp: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateBundleArchive(bundleID, archivePath, archiveHash string, archiveSize int64, updatedAt time.Time) error {
	// archive_updated_at and updated_at get the same value so the archive
	// reads as current immediately after the build.
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundles
		 SET archive_path = ?, archive_hash = ?, archive_size = ?,
		     archive_updated_at = ?, updated_at = ?
		 WHERE id = ?`,
		archivePath, archiveHash, archiveSize, updatedAt, updatedAt, bundleID)
	if err != nil {
		return fmt.Errorf("updating bundle archive: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) IncrementBundleDownloads(bundleID string) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundles SET downloads_count = downloads_count + 1 WHERE id = ?`, bundleID)
	if err != nil {
		return fmt.Errorf("incrementing bundle downloads: %w", err)
	}
	return nil
}

// Bundle item operations

const bundleItemColumns = `id, bundle_id, item_type, item_id, position, section,
	notes, usage_instructions, is_required,
	is_downloadable_individually, individual_downloads_count, created_at`

func scanBundleItem(row rowScanner) (*model.BundleItem, error) {
	var bi model.BundleItem
	err := row.Scan(
		&bi.ID, &bi.BundleID, &bi.ItemType, &bi.ItemID, &bi.Position, &bi.Section,
		&bi.Notes, &bi.UsageInstructions, &bi.IsRequired,
		&bi.IsDownloadableIndividually, &bi.IndividualDownloadsCount, &bi.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bi, nil
}

func (s *SQLiteDatabase) CreateBundleItem(item *model.BundleItem) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO bundle_items (`+bundleItemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.BundleID, item.ItemType, item.ItemID, item.Position, item.Section,
		item.Notes, item.UsageInstructions, item.IsRequired,
		item.IsDownloadableIndividually, item.IndividualDownloadsCount, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating bundle item: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindBundleItem(bundleID, bundleItemID string) (*model.BundleItem, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+bundleItemColumns+` FROM bundle_items WHERE bundle_id = ? AND id = ?`,
		bundleID, bundleItemID)
	bi, err := scanBundleItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding bundle item: %w", err)
	}
	return bi, nil
}

func (s *SQLiteDatabase) DeleteBundleItem(bundleID, bundleItemID string) error {
	_, err := s.db.ExecContext(context.Background(),
		`DELETE FROM bundle_items WHERE bundle_id = ? AND id = ?`, bundleID, bundleItemID)
	if err != nil {
		return fmt.Errorf("deleting bundle item: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateBundleItemPosition(bundleID, bundleItemID string, position int) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundle_items SET position = ? WHERE bundle_id = ? AND id = ?`,
		position, bundleID, bundleItemID)
	if err != nil {
		return fmt.Errorf("updating bundle item position: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindBundleItemsByType(bundleID string, itemType bundle.ItemType) ([]*model.BundleItem, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+bundleItemColumns+` FROM bundle_items
		 WHERE bundle_id = ? AND item_type = ?
		 ORDER BY position`,
		bundleID, itemType.String())
	if err != nil {
		return nil, fmt.Errorf("finding bundle items by type: %w", err)
	}
	defer rows.Close()

	var result []*model.BundleItem
	for rows.Next() {
		bi, err := scanBundleItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bundle item: %w", err)
		}
		result = append(result, bi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding bundle items by type: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) CountBundleItemsByType(bundleID string) (map[bundle.ItemType]int, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT item_type, COUNT(*) FROM bundle_items WHERE bundle_id = ? GROUP BY item_type`,
		bundleID)
	if err != nil {
		return nil, fmt.Errorf("counting bundle items: %w", err)
	}
	defer rows.Close()

	counts := make(map[bundle.ItemType]int)
	for rows.Next() {
		var itemType string
		var count int
		if err := rows.Scan(&itemType, &count); err != nil {
			return nil, fmt.Errorf("scanning item count: %w", err)
		}
		counts[bundle.ItemType(itemType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting bundle items: %w", err)
	}
	return counts, nil
}

func (s *SQLiteDatabase) IncrementBundleItemDownloads(bundleItemID string) error {
	_, err := s.db.ExecContext(context.Background(),
		`UPDATE bundle_items
		 SET individual_downloads_count = individual_downloads_count + 1
		 WHERE id = ?`, bundleItemID)
	if err != nil {
		return fmt.Errorf("incrementing bundle item downloads: %w", err)
	}
	return nil
}

// Content item operations

func (s *SQLiteDatabase) CreateContentItem(item *model.ContentItem) error {
	table, err := contentTable(bundle.ItemType(item.Type))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO `+table+` (id, user_id, title, file_path, is_public, downloads_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Title, item.FilePath, item.IsPublic, item.DownloadsCount, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating %s: %w", item.Type, err)
	}
	return nil
}

func (s *SQLiteDatabase) FindContentItem(itemType bundle.ItemType, id string) (*model.ContentItem, error) {
	table, err := contentTable(itemType)
	if err != nil {
		return nil, err
	}

	var item model.ContentItem
	item.Type = itemType.String()
	err = s.db.QueryRowContext(context.Background(),
		`SELECT id, user_id, title, file_path, is_public, downloads_count, created_at
		 FROM `+table+` WHERE id = ?`, id).
		Scan(&item.ID, &item.UserID, &item.Title, &item.FilePath,
			&item.IsPublic, &item.DownloadsCount, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding %s by id: %w", itemType, err)
	}
	return &item, nil
}

func (s *SQLiteDatabase) IncrementContentItemDownloads(itemType bundle.ItemType, id string) error {
	table, err := contentTable(itemType)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(context.Background(),
		`UPDATE `+table+` SET downloads_count = downloads_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing %s downloads: %w", itemType, err)
	}
	return nil
}

// Statistics

func (s *SQLiteDatabase) BundleStatistics() (*model.BundleStatistics, error) {
	ctx := context.Background()
	stats := &model.BundleStatistics{BundlesByType: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_public), 0),
		        COALESCE(SUM(is_featured), 0),
		        COALESCE(SUM(downloads_count), 0)
		 FROM bundles`).
		Scan(&stats.TotalBundles, &stats.PublicBundles, &stats.FeaturedBundles, &stats.TotalDownloads)
	if err != nil {
		return nil, fmt.Errorf("computing bundle totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT bundle_type, COUNT(*) FROM bundles GROUP BY bundle_type`)
	if err != nil {
		return nil, fmt.Errorf("counting bundles by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bundleType string
		var count int64
		if err := rows.Scan(&bundleType, &count); err != nil {
			return nil, fmt.Errorf("scanning bundle type count: %w", err)
		}
		stats.BundlesByType[bundleType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting bundles by type: %w", err)
	}

	return stats, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements bundle.Database interface
var _ bundle.Database = (*SQLiteDatabase)(nil)
