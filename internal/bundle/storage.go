package bundle

import (
	"io"
	"time"
)

// BlobStore provides an interface for blob storage backends.
// Reads and writes stream through io.Reader/io.Writer so large payloads
// never have to be held in memory.
//
// Two stores are wired into the service: a private one holding archives and
// source payloads, and a public one holding bundle cover/preview media.
type BlobStore interface {
	// Exists reports whether a blob is present at the given path.
	Exists(path string) (bool, error)

	// Get retrieves the blob at path and writes it to w.
	Get(path string, w io.Writer) error

	// Put stores a blob at path, overwriting any existing blob.
	// size is the number of bytes that will be read from r.
	Put(path string, r io.Reader, size int64) error

	// TemporaryURL returns a short-lived URL granting read access to the
	// blob at path. The URL expires after ttl.
	TemporaryURL(path string, ttl time.Duration) (string, error)
}
