package bundle

import "errors"

// Error taxonomy for the bundle subsystem. Callers branch on these with
// errors.Is; storage and database failures are wrapped with their cause
// instead and carry no sentinel.
var (
	// ErrNotFound marks a referenced bundle, bundle item, or content item
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownItemType marks an unsupported item-type discriminator.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrPrivateItem marks an attempt to attach a private item owned by a
	// different user than the bundle owner.
	ErrPrivateItem = errors.New("cannot add private item to bundle")

	// ErrArchiveTooLarge marks an assembled archive exceeding the size cap.
	ErrArchiveTooLarge = errors.New("bundle archive exceeds maximum size limit")

	// ErrDownloadNotAllowed marks an individual download of an item whose
	// bundle item does not permit it.
	ErrDownloadNotAllowed = errors.New("individual download not allowed for this item")
)
