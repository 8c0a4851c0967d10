package bundle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"bm-go/internal/model"
)

// GenerateReadme renders the bundle's README.md. Pure formatting over the
// bundle's current field values; creator may be empty when the owning user
// is unknown.
func GenerateReadme(b *model.Bundle, creator string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", b.Title)

	if b.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", b.Description)
	}

	sb.WriteString("## Bundle Contents\n\n")

	if b.RacksCount > 0 {
		fmt.Fprintf(&sb, "- **%d Racks** - Ableton Live device racks (.adg files)\n", b.RacksCount)
	}
	if b.PresetsCount > 0 {
		fmt.Fprintf(&sb, "- **%d Presets** - Device presets (.adv files)\n", b.PresetsCount)
	}
	if b.SessionsCount > 0 {
		fmt.Fprintf(&sb, "- **%d Sessions** - Ableton Live sessions (.als files)\n", b.SessionsCount)
	}

	sb.WriteString("\n## Bundle Information\n\n")
	fmt.Fprintf(&sb, "- **Type**: %s\n", upperFirst(strings.ReplaceAll(b.BundleType, "_", " ")))

	if b.Genre != "" {
		fmt.Fprintf(&sb, "- **Genre**: %s\n", b.Genre)
	}
	if b.DifficultyLevel != "" {
		fmt.Fprintf(&sb, "- **Difficulty**: %s\n", upperFirst(b.DifficultyLevel))
	}

	fmt.Fprintf(&sb, "- **Created**: %s\n", b.CreatedAt.Format("January 2, 2006"))

	if creator != "" {
		fmt.Fprintf(&sb, "- **Creator**: %s\n", creator)
	}

	sb.WriteString("\n## How to Use\n\n")
	sb.WriteString("1. Extract this archive to a location of your choice\n")
	sb.WriteString("2. Import .adg files (racks) by dragging them into Ableton Live\n")
	sb.WriteString("3. Import .adv files (presets) by placing them in your User Library\n")
	sb.WriteString("4. Open .als files (sessions) directly in Ableton Live\n")

	if b.HowToArticle != "" {
		sb.WriteString("\nSee TUTORIAL.md for detailed instructions and tips.\n")
	}

	sb.WriteString("\n---\n")
	sb.WriteString("*Packaged with bm*\n")

	return sb.String()
}

// bundleInfo is the bundle-info.json schema shipped inside every archive.
type bundleInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Genre       string `json:"genre"`
	Difficulty  string `json:"difficulty"`
	CreatedAt   string `json:"created_at"`
	ItemsCount  int    `json:"items_count"`
	Creator     string `json:"creator"`
}

// GenerateBundleInfo renders the bundle-info.json entry.
func GenerateBundleInfo(b *model.Bundle, creator string) ([]byte, error) {
	if creator == "" {
		creator = "Unknown"
	}
	info := bundleInfo{
		Title:       b.Title,
		Description: b.Description,
		Type:        b.BundleType,
		Genre:       b.Genre,
		Difficulty:  b.DifficultyLevel,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
		ItemsCount:  b.TotalItemsCount,
		Creator:     creator,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding bundle info: %w", err)
	}
	return data, nil
}

// upperFirst capitalizes the first rune of s.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
