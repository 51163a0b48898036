package jobs

import (
	"regexp"
	"strings"
)

var (
	reForbidden  = regexp.MustCompile(`[\\/:*?"<>|]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SanitizeFilename replaces runs of characters that are invalid in file names
// with a single underscore, collapses whitespace and trims the result. An empty
// result becomes fallback. Applying it twice yields the same value.
func SanitizeFilename(name, fallback string) string {
	name = reForbidden.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.TrimSpace(reWhitespace.ReplaceAllString(name, " "))
	if name == "" {
		return fallback
	}
	return name
}

// OutputName sanitizes name and appends ext unless it already ends with it
// (case-insensitive).
func OutputName(name, ext, fallback string) string {
	name = SanitizeFilename(name, fallback)
	if ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}
	return name
}
