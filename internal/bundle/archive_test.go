package bundle_test

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bm-go/internal/bundle"
	"bm-go/internal/storage"
)

// countingStore wraps a BlobStore and counts uploads, so tests can assert
// how many times an archive was actually rebuilt.
type countingStore struct {
	bundle.BlobStore
	mu   sync.Mutex
	puts int
}

func (c *countingStore) Put(path string, r io.Reader, size int64) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.BlobStore.Put(path, r, size)
}

func (c *countingStore) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// readArchive fetches the archive blob and opens it as a ZIP.
func readArchive(t *testing.T, store bundle.BlobStore, path string) *zip.Reader {
	t.Helper()

	var buf bytes.Buffer
	if err := store.Get(path, &buf); err != nil {
		t.Fatalf("fetching archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	return zr
}

func archiveEntryNames(zr *zip.Reader) []string {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading entry %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found in archive", name)
	return ""
}

func TestBuildArchive(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("Ada")
	r1 := f.seedContent(bundle.ItemTypeRack, u.ID, "Bass FX", "rack-one", false)
	r2 := f.seedContent(bundle.ItemTypeRack, u.ID, "Lead Chain", "rack-two", false)
	s1 := f.seedContent(bundle.ItemTypeSession, u.ID, "Full Mix", "session-one", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{
		UserID:      u.ID,
		Title:       "Deep House Essentials",
		Description: "Everything you need.",
	}, []bundle.NewItem{
		{Type: "rack", ID: r1.ID, Position: 1},
		{Type: "rack", ID: r2.ID, Position: 2},
		{Type: "session", ID: s1.ID, Position: 1},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	archivePath, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}

	wantPath := fmt.Sprintf("bundles/archives/bundle_%s.zip", b.UUID)
	if archivePath != wantPath {
		t.Errorf("archive path = %q, want %q", archivePath, wantPath)
	}

	zr := readArchive(t, f.private, archivePath)
	wantEntries := []string{
		"README.md",
		"bundle-info.json",
		"Racks/Bass_FX.adg",
		"Racks/Lead_Chain.adg",
		"Sessions/Full_Mix.als",
	}
	got := archiveEntryNames(zr)
	for _, want := range wantEntries {
		found := false
		for _, name := range got {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("archive missing entry %q; entries: %v", want, got)
		}
	}
	if len(got) != len(wantEntries) {
		t.Errorf("archive has %d entries, want %d: %v", len(got), len(wantEntries), got)
	}

	if payload := readEntry(t, zr, "Racks/Bass_FX.adg"); payload != "rack-one" {
		t.Errorf("rack payload = %q", payload)
	}

	readme := readEntry(t, zr, "README.md")
	if !strings.Contains(readme, "- **2 Racks**") {
		t.Errorf("README missing rack count:\n%s", readme)
	}
	if !strings.Contains(readme, "- **1 Sessions**") {
		t.Errorf("README missing session count:\n%s", readme)
	}
	if !strings.Contains(readme, "- **Creator**: Ada") {
		t.Errorf("README missing creator:\n%s", readme)
	}

	var info struct {
		ItemsCount int `json:"items_count"`
	}
	if err := json.Unmarshal([]byte(readEntry(t, zr, "bundle-info.json")), &info); err != nil {
		t.Fatalf("bundle-info.json invalid: %v", err)
	}
	if info.ItemsCount != 3 {
		t.Errorf("items_count = %d, want 3", info.ItemsCount)
	}

	// Recorded metadata matches the stored blob.
	var blob bytes.Buffer
	if err := f.private.Get(archivePath, &blob); err != nil {
		t.Fatalf("fetching archive: %v", err)
	}
	if b.ArchiveSize != int64(blob.Len()) {
		t.Errorf("ArchiveSize = %d, blob is %d bytes", b.ArchiveSize, blob.Len())
	}
	sum := sha256.Sum256(blob.Bytes())
	if b.ArchiveHash != hex.EncodeToString(sum[:]) {
		t.Errorf("ArchiveHash = %q does not match blob", b.ArchiveHash)
	}
	if b.ArchiveUpdatedAt == nil || b.ArchiveUpdatedAt.Before(b.UpdatedAt) {
		t.Error("archive not recorded as current after build")
	}
}

func TestBuildArchive_tutorialAndMedia(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("Ada")

	if err := f.public.Put("covers/pack.jpg", strings.NewReader("jpg"), 3); err != nil {
		t.Fatalf("seeding cover: %v", err)
	}
	if err := f.public.Put("previews/pack.mp3", strings.NewReader("mp3"), 3); err != nil {
		t.Fatalf("seeding preview: %v", err)
	}

	b, err := f.svc.CreateBundle(bundle.NewBundle{
		UserID:           u.ID,
		Title:            "Pack",
		HowToArticle:     "Start with the kick.",
		CoverImagePath:   "covers/pack.jpg",
		PreviewAudioPath: "previews/pack.mp3",
	}, nil)
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	archivePath, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}

	zr := readArchive(t, f.private, archivePath)
	if got := readEntry(t, zr, "TUTORIAL.md"); got != "Start with the kick." {
		t.Errorf("TUTORIAL.md = %q", got)
	}
	if got := readEntry(t, zr, "Media/cover.jpg"); got != "jpg" {
		t.Errorf("cover = %q", got)
	}
	if got := readEntry(t, zr, "Media/preview.mp3"); got != "mp3" {
		t.Errorf("preview = %q", got)
	}
}

func TestBuildArchive_missingPayloadSkipped(t *testing.T) {
	store := storage.NewMemoryStore()
	f := newFixtureWithStore(t, store)
	u := f.seedUser("Ada")
	kept := f.seedContent(bundle.ItemTypeRack, u.ID, "Kept", "kept-bytes", false)
	missing := f.seedContent(bundle.ItemTypeRack, u.ID, "Missing", "gone-bytes", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, []bundle.NewItem{
		{Type: "rack", ID: kept.ID, Position: 1},
		{Type: "rack", ID: missing.ID, Position: 2},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	store.Delete(missing.FilePath)

	archivePath, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}

	zr := readArchive(t, f.private, archivePath)
	for _, name := range archiveEntryNames(zr) {
		if name == "Racks/Missing.adg" {
			t.Error("archive contains entry for missing payload")
		}
	}
	if got := readEntry(t, zr, "Racks/Kept.adg"); got != "kept-bytes" {
		t.Errorf("kept payload = %q", got)
	}
}

func TestBuildArchive_idempotentWhenCurrent(t *testing.T) {
	counting := &countingStore{BlobStore: storage.NewMemoryStore()}
	f := newFixtureWithStore(t, counting)
	u := f.seedUser("Ada")
	rack := f.seedContent(bundle.ItemTypeRack, u.ID, "Bass FX", "bytes", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, []bundle.NewItem{
		{Type: "rack", ID: rack.ID},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	// Seeding the payload was the first Put.
	base := counting.putCount()

	first, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}
	second, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("second BuildArchive() error = %v", err)
	}

	if first != second {
		t.Errorf("paths differ: %q then %q", first, second)
	}
	if got := counting.putCount() - base; got != 1 {
		t.Errorf("archive uploaded %d times, want 1", got)
	}
}

func TestBuildArchive_force(t *testing.T) {
	counting := &countingStore{BlobStore: storage.NewMemoryStore()}
	f := newFixtureWithStore(t, counting)
	u := f.seedUser("Ada")

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, nil)
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	if _, err := f.svc.BuildArchive(b, false); err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}
	base := counting.putCount()

	if _, err := f.svc.BuildArchive(b, true); err != nil {
		t.Fatalf("forced BuildArchive() error = %v", err)
	}
	if got := counting.putCount() - base; got != 1 {
		t.Errorf("forced build uploaded %d times, want 1", got)
	}
}

func TestBuildArchive_rebuildsAfterItemChange(t *testing.T) {
	counting := &countingStore{BlobStore: storage.NewMemoryStore()}
	f := newFixtureWithStore(t, counting)
	u := f.seedUser("Ada")
	rack := f.seedContent(bundle.ItemTypeRack, u.ID, "Bass FX", "bytes", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, nil)
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}
	if _, err := f.svc.BuildArchive(b, false); err != nil {
		t.Fatalf("BuildArchive() error = %v", err)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.svc.AddItem(b, bundle.NewItem{Type: "rack", ID: rack.ID}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	base := counting.putCount()

	archivePath, err := f.svc.BuildArchive(b, false)
	if err != nil {
		t.Fatalf("rebuild error = %v", err)
	}
	if got := counting.putCount() - base; got != 1 {
		t.Errorf("rebuild uploaded %d times, want 1", got)
	}

	zr := readArchive(t, f.private, archivePath)
	readEntry(t, zr, "Racks/Bass_FX.adg")
}

func TestBuildArchive_sizeLimit(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("Ada")
	rack := f.seedContent(bundle.ItemTypeRack, u.ID, "Big Rack", strings.Repeat("x", 4096), false)

	// A dedicated service with a tiny size cap and its own scratch dir.
	scratchDir := t.TempDir()
	svc := bundle.NewBundleService(f.db, f.private, f.public, bundle.NewNopLogger(), f.clock, f.idgen, bundle.ArchiveOptions{
		MaxSize:    128,
		ScratchDir: scratchDir,
	})

	b, err := svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, []bundle.NewItem{
		{Type: "rack", ID: rack.ID},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	_, err = svc.BuildArchive(b, false)
	if !errors.Is(err, bundle.ErrArchiveTooLarge) {
		t.Fatalf("BuildArchive() error = %v, want ErrArchiveTooLarge", err)
	}

	// Failed builds leave no scratch files and no archive metadata.
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir has %d leftover files", len(entries))
	}
	if b.ArchivePath != "" || b.ArchiveUpdatedAt != nil {
		t.Errorf("archive metadata set after failed build: path=%q", b.ArchivePath)
	}
	stored := f.reloadBundle(b.ID)
	if stored.ArchivePath != "" {
		t.Errorf("stored archive path = %q after failed build", stored.ArchivePath)
	}
}

func TestBuildArchive_concurrentBuildsSerialized(t *testing.T) {
	counting := &countingStore{BlobStore: storage.NewMemoryStore()}
	f := newFixtureWithStore(t, counting)
	u := f.seedUser("Ada")
	rack := f.seedContent(bundle.ItemTypeRack, u.ID, "Bass FX", "bytes", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, []bundle.NewItem{
		{Type: "rack", ID: rack.ID},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}
	base := counting.putCount()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.BuildArchive(b, false)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("build %d error = %v", i, err)
		}
	}
	if got := counting.putCount() - base; got != 1 {
		t.Errorf("archive uploaded %d times, want 1", got)
	}
}

func TestDownloadArchiveTo(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser("Ada")
	rack := f.seedContent(bundle.ItemTypeRack, u.ID, "Bass FX", "bytes", false)

	b, err := f.svc.CreateBundle(bundle.NewBundle{UserID: u.ID, Title: "Pack"}, []bundle.NewItem{
		{Type: "rack", ID: rack.ID},
	})
	if err != nil {
		t.Fatalf("CreateBundle() error = %v", err)
	}

	var buf bytes.Buffer
	if err := f.svc.DownloadArchiveTo(b, &buf); err != nil {
		t.Fatalf("DownloadArchiveTo() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("downloaded archive invalid: %v", err)
	}
	readEntry(t, zr, "Racks/Bass_FX.adg")
}
