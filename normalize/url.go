package normalize

import (
	"net/url"
	"strings"
)

// CleanURL strips query string and fragment to produce the dedup key.
// Malformed input is returned unchanged, never an error.
func CleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// AbsoluteURL resolves an href against the platform origin
func AbsoluteURL(raw string, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "#") {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		return raw, true
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(u).String(), true
}

// Placeholder thumbnails the marketplaces serve for lazy-loaded cards
var placeholderPatterns = []string{
	"blank.gif",
	"grey.gif",
	"placeholder",
	"spacer.",
	"loading.",
	"1x1.",
}

// AbsoluteImageURL resolves an image src against the platform origin.
// Data URIs and known placeholder patterns are rejected.
func AbsoluteImageURL(raw string, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, p := range placeholderPatterns {
		if strings.Contains(lower, p) {
			return "", false
		}
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		return raw, true
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(u).String(), true
}
