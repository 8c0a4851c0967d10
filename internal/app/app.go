package app

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"bm-go/internal/bundle"
	"bm-go/internal/config"
	"bm-go/internal/database"
	"bm-go/internal/model"
	"bm-go/internal/storage"
)

// BundleApp wires the configured database, storage backends, and logger
// into a BundleService and exposes the operations the CLI runs.
type BundleApp struct {
	Config  *config.Config
	Service *bundle.BundleService

	database bundle.Database
	private  bundle.BlobStore
	clock    bundle.Clock
	idgen    bundle.IDGenerator
	logFile  *os.File
}

// NewBundleApp builds a BundleApp from the config file at configPath.
// Pending schema migrations are applied on open.
func NewBundleApp(configPath string) (*BundleApp, error) {
	cfg, err := config.ReadFromFile(configPath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	private, err := storage.NewStoreFromConfig(cfg.PrivateStorage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening private storage: %w", err)
	}
	public, err := storage.NewStoreFromConfig(cfg.PublicStorage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening public storage: %w", err)
	}

	clock := &bundle.RealClock{}
	idgen := &bundle.UUIDGenerator{}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger := &slogAdapter{l: slogger}

	svc := bundle.NewBundleService(db, private, public, logger, clock, idgen, bundle.ArchiveOptions{
		MaxSize:    cfg.Archive.MaxSize,
		ScratchDir: cfg.Archive.ScratchDir,
	})

	return &BundleApp{
		Config:   cfg,
		Service:  svc,
		database: db,
		private:  private,
		clock:    clock,
		idgen:    idgen,
		logFile:  logFile,
	}, nil
}

// Close releases the database handle and the log file.
func (a *BundleApp) Close() error {
	var firstErr error
	if err := a.database.Close(); err != nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CreateUser registers a user and returns its generated ID.
func (a *BundleApp) CreateUser(name string) (*model.User, error) {
	u := &model.User{
		ID:        a.idgen.New(),
		Name:      name,
		CreatedAt: a.clock.Now(),
	}
	if err := a.database.CreateUser(u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// ImportContentItem uploads a local file into private storage and registers
// it as a content item of the given type. The stored path is
// sources/<type>/<id><ext>.
func (a *BundleApp) ImportContentItem(itemType, userID, title, filePath string, public bool) (*model.ContentItem, error) {
	parsed, err := bundle.ParseItemType(itemType)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}

	id := a.idgen.New()
	ext := filepath.Ext(filePath)
	if ext == "" {
		ext = parsed.Extension()
	}
	storedPath := path.Join("sources", parsed.String(), id+ext)

	if err := a.private.Put(storedPath, f, info.Size()); err != nil {
		return nil, fmt.Errorf("uploading source file: %w", err)
	}

	item := &model.ContentItem{
		ID:        id,
		Type:      parsed.String(),
		UserID:    userID,
		Title:     title,
		FilePath:  storedPath,
		IsPublic:  public,
		CreatedAt: a.clock.Now(),
	}
	if err := a.database.CreateContentItem(item); err != nil {
		return nil, fmt.Errorf("registering content item: %w", err)
	}
	return item, nil
}

// CreateBundle creates a bundle via the service layer.
func (a *BundleApp) CreateBundle(attrs bundle.NewBundle, items []bundle.NewItem) (*model.Bundle, error) {
	return a.Service.CreateBundle(attrs, items)
}

// FindBundle resolves a bundle by ID first, then by slug.
func (a *BundleApp) FindBundle(ref string) (*model.Bundle, error) {
	b, err := a.database.FindBundleByID(ref)
	if err != nil {
		return nil, fmt.Errorf("finding bundle: %w", err)
	}
	if b == nil {
		b, err = a.database.FindBundleBySlug(ref)
		if err != nil {
			return nil, fmt.Errorf("finding bundle: %w", err)
		}
	}
	if b == nil {
		return nil, fmt.Errorf("bundle %s: %w", ref, bundle.ErrNotFound)
	}
	return b, nil
}

// AddItem attaches a content item to the bundle named by ref.
func (a *BundleApp) AddItem(ref string, item bundle.NewItem) (*model.BundleItem, error) {
	b, err := a.FindBundle(ref)
	if err != nil {
		return nil, err
	}
	return a.Service.AddItem(b, item)
}

// RemoveItem detaches a bundle item from the bundle named by ref.
func (a *BundleApp) RemoveItem(ref, bundleItemID string) error {
	b, err := a.FindBundle(ref)
	if err != nil {
		return err
	}
	return a.Service.RemoveItem(b, bundleItemID)
}

// ReorderItems applies new positions to items of the bundle named by ref.
func (a *BundleApp) ReorderItems(ref string, positions map[string]int) error {
	b, err := a.FindBundle(ref)
	if err != nil {
		return err
	}
	return a.Service.ReorderItems(b, positions)
}

// BuildArchive assembles the archive for the bundle named by ref.
func (a *BundleApp) BuildArchive(ref string, force bool) (*model.Bundle, error) {
	b, err := a.FindBundle(ref)
	if err != nil {
		return nil, err
	}
	if _, err := a.Service.BuildArchive(b, force); err != nil {
		return nil, err
	}
	return b, nil
}

// DownloadURL returns a temporary URL to the bundle's archive, rebuilding
// it first if stale, and records the download.
func (a *BundleApp) DownloadURL(ref string) (string, error) {
	b, err := a.FindBundle(ref)
	if err != nil {
		return "", err
	}
	url, err := a.Service.BundleDownloadURL(b)
	if err != nil {
		return "", err
	}
	if err := a.Service.RecordBundleDownload(b); err != nil {
		return "", err
	}
	return url, nil
}

// DownloadToFile writes the bundle's archive to destPath, rebuilding it
// first if stale, and records the download.
func (a *BundleApp) DownloadToFile(ref, destPath string) error {
	b, err := a.FindBundle(ref)
	if err != nil {
		return err
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer f.Close()

	if err := a.Service.DownloadArchiveTo(b, f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing destination file: %w", err)
	}
	return a.Service.RecordBundleDownload(b)
}

// ItemURL returns a temporary URL to a bundle item's underlying file and
// records the individual download.
func (a *BundleApp) ItemURL(ref, bundleItemID string) (string, error) {
	b, err := a.FindBundle(ref)
	if err != nil {
		return "", err
	}

	bi, err := a.database.FindBundleItem(b.ID, bundleItemID)
	if err != nil {
		return "", fmt.Errorf("finding bundle item: %w", err)
	}
	if bi == nil {
		return "", fmt.Errorf("bundle item %s: %w", bundleItemID, bundle.ErrNotFound)
	}

	url, err := a.Service.ItemDownloadURL(bi)
	if err != nil {
		return "", err
	}
	if err := a.Service.RecordItemDownload(bi); err != nil {
		return "", err
	}
	return url, nil
}

// ListBundles returns up to limit bundles, newest first.
func (a *BundleApp) ListBundles(limit int) ([]*model.Bundle, error) {
	return a.database.ListBundles(limit)
}

// Statistics aggregates counts across all bundles.
func (a *BundleApp) Statistics() (*model.BundleStatistics, error) {
	return a.Service.Statistics()
}

var _ io.Closer = (*BundleApp)(nil)
