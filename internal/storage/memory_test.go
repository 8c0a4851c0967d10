package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()

	t.Run("exists on empty store", func(t *testing.T) {
		ok, err := m.Exists("nope")
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if ok {
			t.Error("Exists() = true for missing blob")
		}
	})

	t.Run("put and get round trip", func(t *testing.T) {
		if err := m.Put("a/b.txt", strings.NewReader("hello"), 5); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		ok, err := m.Exists("a/b.txt")
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if !ok {
			t.Error("Exists() = false after Put")
		}

		var buf bytes.Buffer
		if err := m.Get("a/b.txt", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "hello" {
			t.Errorf("Get() = %q, want %q", buf.String(), "hello")
		}
	})

	t.Run("put rejects size mismatch", func(t *testing.T) {
		if err := m.Put("bad", strings.NewReader("hello"), 3); err == nil {
			t.Error("Put() with wrong size succeeded")
		}
	})

	t.Run("get missing blob fails", func(t *testing.T) {
		var buf bytes.Buffer
		if err := m.Get("nope", &buf); err == nil {
			t.Error("Get() of missing blob succeeded")
		}
	})

	t.Run("temporary url carries path and ttl", func(t *testing.T) {
		url, err := m.TemporaryURL("a/b.txt", 10*time.Minute)
		if err != nil {
			t.Fatalf("TemporaryURL() error = %v", err)
		}
		want := "memory://a/b.txt?ttl=10m0s"
		if url != want {
			t.Errorf("TemporaryURL() = %q, want %q", url, want)
		}
	})

	t.Run("temporary url for missing blob fails", func(t *testing.T) {
		if _, err := m.TemporaryURL("nope", time.Minute); err == nil {
			t.Error("TemporaryURL() of missing blob succeeded")
		}
	})

	t.Run("delete removes blob", func(t *testing.T) {
		m.Delete("a/b.txt")
		ok, _ := m.Exists("a/b.txt")
		if ok {
			t.Error("Exists() = true after Delete")
		}
	})
}
