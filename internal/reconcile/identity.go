// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"strings"

	"github.com/pdiddy/pubsync/pkg/types"
)

// MatchKey names the identifier that matched a record.
type MatchKey string

const (
	MatchExternalID MatchKey = "external_id"
	MatchDOI        MatchKey = "doi"
	MatchTitle      MatchKey = "title"
)

// Match is an existing record that a fresh record resolved to.
type Match struct {
	Existing types.Publication
	Key      MatchKey
}

// Index looks up existing publications by each identity key. When two
// existing records share a key the first one wins.
type Index struct {
	byExternalID map[string]types.Publication
	byDOI        map[string]types.Publication
	byTitle      map[string]types.Publication
}

// NewIndex indexes existing, manual records included.
func NewIndex(existing []types.Publication) *Index {
	idx := &Index{
		byExternalID: make(map[string]types.Publication, len(existing)),
		byDOI:        make(map[string]types.Publication, len(existing)),
		byTitle:      make(map[string]types.Publication, len(existing)),
	}
	for _, p := range existing {
		putFirst(idx.byExternalID, p.ExternalID, p)
		putFirst(idx.byDOI, NormalizeDOI(p.DOI), p)
		putFirst(idx.byTitle, NormalizeTitle(p.Title), p)
	}
	return idx
}

func putFirst(m map[string]types.Publication, key string, p types.Publication) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = p
	}
}

// NormalizeDOI lowercases and trims a DOI.
func NormalizeDOI(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// NormalizeTitle lowercases a title and collapses its whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// ResolveIdentity finds the existing record p refers to, trying the
// external id, then the DOI (case-insensitive), then the normalized title.
func ResolveIdentity(p types.Publication, idx *Index) (Match, bool) {
	if e, ok := lookup(idx.byExternalID, p.ExternalID); ok {
		return Match{Existing: e, Key: MatchExternalID}, true
	}
	if e, ok := lookup(idx.byDOI, NormalizeDOI(p.DOI)); ok {
		return Match{Existing: e, Key: MatchDOI}, true
	}
	if e, ok := lookup(idx.byTitle, NormalizeTitle(p.Title)); ok {
		return Match{Existing: e, Key: MatchTitle}, true
	}
	return Match{}, false
}

func lookup(m map[string]types.Publication, key string) (types.Publication, bool) {
	if key == "" {
		return types.Publication{}, false
	}
	p, ok := m[key]
	return p, ok
}
