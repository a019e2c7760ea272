package schema

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a string and collapses every non-alphanumeric run
// into a single hyphen. Used to derive entity ids from titles.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// EntityID composes the conventional {type}-{slug} identifier.
func EntityID(kind, title string) string {
	return kind + "-" + Slugify(title)
}

// BondID composes the conventional rel-{verb}-{from}-{to} identifier.
func BondID(verb, fromID, toID string) string {
	return "rel-" + verb + "-" + Slugify(fromID) + "-" + Slugify(toID)
}
