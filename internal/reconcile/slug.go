// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

const maxSlugLen = 50

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases title, joins alphanumeric runs with hyphens, and caps
// the result at 50 characters.
func Slug(title string) string {
	s := slugSeparators.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// PublicationID returns the dataset id for a new publication:
// "pub-<year>-<slug>".
func PublicationID(year int, title string) string {
	return fmt.Sprintf("pub-%d-%s", year, Slug(title))
}
