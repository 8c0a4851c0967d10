package bundle

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"bm-go/internal/model"
)

// BuildArchive assembles the bundle's ZIP archive and records it on the
// bundle row. When force is false and the recorded archive is still
// current, the existing path is returned without touching storage.
//
// Builds for the same bundle are serialized; a request that waited on the
// lock re-checks freshness and usually takes the fast path.
func (s *BundleService) BuildArchive(b *model.Bundle, force bool) (string, error) {
	unlock := s.builds.acquire(b.ID)
	defer unlock()

	s.logger.Info("building bundle archive", "bundle_id", b.ID)

	if !force {
		current, err := s.isArchiveCurrent(b)
		if err != nil {
			return "", err
		}
		if current {
			s.logger.Info("using existing archive", "bundle_id", b.ID)
			return b.ArchivePath, nil
		}
	}

	archivePath, err := s.buildArchive(b)
	if err != nil {
		s.logger.Error("failed to build bundle archive", "bundle_id", b.ID, "error", err)
		return "", err
	}

	s.logger.Info("bundle archive created", "bundle_id", b.ID, "archive_size", b.ArchiveSize)
	return archivePath, nil
}

// buildArchive performs the actual assembly: write the ZIP to a scratch
// file, enforce the size cap, hash, upload to permanent storage, then flip
// the bundle's archive metadata. The scratch file is removed on every exit
// path by the deferred remove.
func (s *BundleService) buildArchive(b *model.Bundle) (string, error) {
	archivePath := path.Join("bundles", "archives", fmt.Sprintf("bundle_%s.zip", b.UUID))

	if s.scratchDir != "" {
		if err := os.MkdirAll(s.scratchDir, 0755); err != nil {
			return "", fmt.Errorf("creating scratch directory: %w", err)
		}
	}
	scratch, err := os.CreateTemp(s.scratchDir, "bm-archive-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if err := s.writeArchive(scratch, b); err != nil {
		scratch.Close()
		return "", err
	}
	if err := scratch.Close(); err != nil {
		return "", fmt.Errorf("closing scratch file: %w", err)
	}

	info, err := os.Stat(scratchPath)
	if err != nil {
		return "", fmt.Errorf("stat scratch file: %w", err)
	}
	size := info.Size()
	if size > s.maxArchiveSize {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrArchiveTooLarge, size, s.maxArchiveSize)
	}

	f, err := os.Open(scratchPath)
	if err != nil {
		return "", fmt.Errorf("opening scratch file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing archive: %w", err)
	}
	archiveHash := hex.EncodeToString(h.Sum(nil))

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding scratch file: %w", err)
	}
	if err := s.private.Put(archivePath, f, size); err != nil {
		return "", fmt.Errorf("uploading archive: %w", err)
	}

	now := s.clock.Now()
	if err := s.database.UpdateBundleArchive(b.ID, archivePath, archiveHash, size, now); err != nil {
		return "", fmt.Errorf("recording archive metadata: %w", err)
	}

	b.ArchivePath = archivePath
	b.ArchiveHash = archiveHash
	b.ArchiveSize = size
	b.ArchiveUpdatedAt = &now
	b.UpdatedAt = now

	return archivePath, nil
}

// writeArchive writes all ZIP entries: generated documentation, the three
// content folders in position order, and media previews.
func (s *BundleService) writeArchive(w io.Writer, b *model.Bundle) error {
	zw := zip.NewWriter(w)

	if err := s.addDocumentation(zw, b); err != nil {
		zw.Close()
		return err
	}

	for _, itemType := range ItemTypes {
		if err := s.addItemsOfType(zw, b, itemType); err != nil {
			zw.Close()
			return err
		}
	}

	if err := s.addMedia(zw, b); err != nil {
		zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zip writer: %w", err)
	}
	return nil
}

// addDocumentation writes README.md, TUTORIAL.md (when the bundle has
// how-to content), and bundle-info.json.
func (s *BundleService) addDocumentation(zw *zip.Writer, b *model.Bundle) error {
	creator := ""
	user, err := s.database.FindUserByID(b.UserID)
	if err != nil {
		return fmt.Errorf("finding bundle owner: %w", err)
	}
	if user != nil {
		creator = user.Name
	}

	if err := addZipEntry(zw, "README.md", []byte(GenerateReadme(b, creator))); err != nil {
		return err
	}

	if b.HowToArticle != "" {
		if err := addZipEntry(zw, "TUTORIAL.md", []byte(b.HowToArticle)); err != nil {
			return err
		}
	}

	info, err := GenerateBundleInfo(b, creator)
	if err != nil {
		return err
	}
	return addZipEntry(zw, "bundle-info.json", info)
}

// addItemsOfType streams the payloads of one content kind into its archive
// folder, ordered by position. Items whose blob is missing from storage
// are skipped; the archive may be legitimately incomplete.
func (s *BundleService) addItemsOfType(zw *zip.Writer, b *model.Bundle, itemType ItemType) error {
	items, err := s.database.FindBundleItemsByType(b.ID, itemType)
	if err != nil {
		return fmt.Errorf("querying %s items: %w", itemType, err)
	}

	for _, item := range items {
		content, err := s.database.FindContentItem(itemType, item.ItemID)
		if err != nil {
			return fmt.Errorf("finding %s %s: %w", itemType, item.ItemID, err)
		}
		if content == nil {
			continue
		}

		exists, err := s.private.Exists(content.FilePath)
		if err != nil {
			return fmt.Errorf("checking %s payload: %w", itemType, err)
		}
		if !exists {
			s.logger.Warn("bundle item payload missing, skipping",
				"bundle_id", b.ID, "item_type", itemType.String(), "item_id", content.ID)
			continue
		}

		name := itemType.Folder() + "/" + SanitizeFilename(content.Title) + itemType.Extension()
		ew, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("creating zip entry %s: %w", name, err)
		}
		if err := s.private.Get(content.FilePath, ew); err != nil {
			return fmt.Errorf("reading %s payload: %w", itemType, err)
		}
	}

	return nil
}

// addMedia copies the bundle's cover image and preview audio into Media/,
// preserving the original file extensions.
func (s *BundleService) addMedia(zw *zip.Writer, b *model.Bundle) error {
	media := []struct {
		src  string
		name string
	}{
		{b.CoverImagePath, "cover"},
		{b.PreviewAudioPath, "preview"},
	}

	for _, m := range media {
		if m.src == "" {
			continue
		}
		exists, err := s.public.Exists(m.src)
		if err != nil {
			return fmt.Errorf("checking media blob: %w", err)
		}
		if !exists {
			continue
		}

		name := "Media/" + m.name + filepath.Ext(m.src)
		ew, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("creating zip entry %s: %w", name, err)
		}
		if err := s.public.Get(m.src, ew); err != nil {
			return fmt.Errorf("reading media blob: %w", err)
		}
	}

	return nil
}

func addZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}
