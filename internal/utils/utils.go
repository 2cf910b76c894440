package utils

import (
	"regexp"
	"strings"
)

var (
	locatorPattern = regexp.MustCompile(`(?i)^https?://(www\.)?(youtube\.com/(watch\?v=|shorts/|live/|embed/|v/)|youtu\.be/).+`)
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
)

// ValidateLocator reports whether url points at a supported video page.
// Equivalent URL forms are not normalized.
func ValidateLocator(url string) bool {
	return locatorPattern.MatchString(url)
}

func SanitizeFilename(name string) string {
	sanitized := unsafeChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, ". ")
	if sanitized == "" {
		return "video"
	}
	const maxLength = 200
	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
	}
	return sanitized
}
