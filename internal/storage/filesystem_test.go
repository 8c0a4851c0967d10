package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileSystemStore(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	t.Run("put creates nested directories", func(t *testing.T) {
		if err := s.Put("bundles/archives/b.zip", strings.NewReader("zipdata"), 7); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		ok, err := s.Exists("bundles/archives/b.zip")
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if !ok {
			t.Error("Exists() = false after Put")
		}

		var buf bytes.Buffer
		if err := s.Get("bundles/archives/b.zip", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "zipdata" {
			t.Errorf("Get() = %q", buf.String())
		}
	})

	t.Run("put overwrites existing blob", func(t *testing.T) {
		if err := s.Put("bundles/archives/b.zip", strings.NewReader("newdata"), 7); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var buf bytes.Buffer
		if err := s.Get("bundles/archives/b.zip", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "newdata" {
			t.Errorf("Get() after overwrite = %q", buf.String())
		}
	})

	t.Run("size mismatch leaves no temp files", func(t *testing.T) {
		if err := s.Put("bad.bin", strings.NewReader("hello"), 99); err == nil {
			t.Fatal("Put() with wrong size succeeded")
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("reading root: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tmp-") {
				t.Errorf("leftover temp file: %s", e.Name())
			}
		}

		ok, _ := s.Exists("bad.bin")
		if ok {
			t.Error("partial blob exists after failed Put")
		}
	})

	t.Run("exists is false for directories", func(t *testing.T) {
		ok, err := s.Exists("bundles/archives")
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if ok {
			t.Error("Exists() = true for a directory")
		}
	})

	t.Run("temporary url points at the blob", func(t *testing.T) {
		url, err := s.TemporaryURL("bundles/archives/b.zip", time.Minute)
		if err != nil {
			t.Fatalf("TemporaryURL() error = %v", err)
		}
		if !strings.HasPrefix(url, "file://") {
			t.Errorf("url = %q, want file:// scheme", url)
		}
		wantSuffix := "bundles/archives/b.zip"
		if !strings.HasSuffix(url, wantSuffix) {
			t.Errorf("url = %q, want suffix %q", url, wantSuffix)
		}
	})

	t.Run("temporary url for missing blob fails", func(t *testing.T) {
		if _, err := s.TemporaryURL("nope.zip", time.Minute); err == nil {
			t.Error("TemporaryURL() of missing blob succeeded")
		}
	})

	t.Run("get missing blob fails", func(t *testing.T) {
		var buf bytes.Buffer
		if err := s.Get(filepath.Join("no", "such", "blob"), &buf); err == nil {
			t.Error("Get() of missing blob succeeded")
		}
	})
}
