package bundle

import (
	"regexp"
	"strings"
)

var (
	invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
	nonSlug              = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiDash            = regexp.MustCompile(`-+`)
)

// SanitizeFilename makes a content-item title safe for use as a ZIP entry
// name. The result contains only [A-Za-z0-9_.-], with whitespace runs
// collapsed to single underscores. Deterministic: the same title always
// yields the same filename, and no path separators or ".." sequences can
// survive the character filter.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_-")

	if name == "" {
		return "untitled"
	}
	return name
}

// MakeSlug generates a URL-safe slug from a bundle title.
// Example: "Deep House Essentials" -> "deep-house-essentials"
func MakeSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlug.ReplaceAllString(slug, "")
	slug = multiDash.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		slug = "bundle"
	}
	return slug
}
