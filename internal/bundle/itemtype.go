package bundle

import "fmt"

// ItemType identifies which kind of content item a bundle item points at.
// The set is closed: every ItemType carries a fixed archive folder and file
// extension, so adding a new kind means extending all three tables below.
type ItemType string

const (
	ItemTypeRack    ItemType = "rack"
	ItemTypePreset  ItemType = "preset"
	ItemTypeSession ItemType = "session"
)

// ItemTypes lists all item types in archive order.
var ItemTypes = []ItemType{ItemTypeRack, ItemTypePreset, ItemTypeSession}

// ParseItemType validates a type discriminator string.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemTypeRack, ItemTypePreset, ItemTypeSession:
		return ItemType(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownItemType, s)
	}
}

// Folder returns the archive folder for this item type.
func (t ItemType) Folder() string {
	switch t {
	case ItemTypeRack:
		return "Racks"
	case ItemTypePreset:
		return "Presets"
	case ItemTypeSession:
		return "Sessions"
	}
	return ""
}

// Extension returns the file extension (with leading dot) for this item type.
func (t ItemType) Extension() string {
	switch t {
	case ItemTypeRack:
		return ".adg"
	case ItemTypePreset:
		return ".adv"
	case ItemTypeSession:
		return ".als"
	}
	return ""
}

func (t ItemType) String() string {
	return string(t)
}
