package domain

import (
	"regexp"
	"strings"
)

const defaultSlug = "artifact"

var slugInvalid = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slugify makes s safe for use as an object-key or path segment. The result
// only contains [A-Za-z0-9._-], is never empty and is never "." or "..".
func Slugify(s string) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(s, "-"), "-")
	if strings.Trim(slug, ".") == "" {
		return defaultSlug
	}
	return slug
}
