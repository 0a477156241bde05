// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/pubsync/pkg/types"
)

// patternMinTitle is stricter than minTitleLen because any permalink in
// any table row qualifies here.
const patternMinTitle = 10

var (
	// authorSequence matches "J Smith, AB Doe" style lists of two-token names.
	authorSequence = regexp.MustCompile(
		`[A-Z][A-Za-z'\-]*\.?\s+[A-Z][A-Za-z'\-]+(?:,\s*[A-Z][A-Za-z'\-]*\.?\s+[A-Z][A-Za-z'\-]+)*`)
	citedBySuffix = regexp.MustCompile(`(?i)\s*cited by\s*\d[\d,]*.*$`)
)

// PatternTier is the last resort when the listing's class names are gone.
// It keeps any table row holding a citation permalink and recovers the
// other fields from the row text with regular expressions.
type PatternTier struct {
	parser *fieldParser
	logger *slog.Logger
}

func (t *PatternTier) Name() string { return "pattern" }

func (t *PatternTier) TryExtract(in Input) ([]types.CandidateRecord, bool) {
	doc, err := documentFor(in)
	if err != nil {
		t.logger.Warn("scrape: cannot parse page HTML", "tier", t.Name(), "error", err)
		return nil, false
	}
	if doc == nil {
		return nil, false
	}

	var out []types.CandidateRecord
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		link := row.Find(`a[href*="citation_for_view"]`).First()
		if link.Length() == 0 {
			return
		}
		title := strings.Join(strings.Fields(link.Text()), " ")
		text := spacedText(row)

		rest := strings.TrimSpace(strings.Replace(text, spacedText(link), "", 1))
		authors := authorSequence.FindString(rest)
		if authors != "" {
			rest = strings.TrimSpace(strings.Replace(rest, authors, "", 1))
		}
		venue := strings.TrimSpace(citedBySuffix.ReplaceAllString(rest, ""))

		rec, ok := t.parser.build(rowFields{
			index:       i,
			title:       title,
			href:        link.AttrOr("href", ""),
			authorsText: authors,
			venue:       venue,
			rowText:     text,
			idPrefix:    "gs-alt",
			minTitle:    patternMinTitle,
			loose:       true,
		})
		if !ok {
			t.logger.Debug("scrape: skipping row with short title", "tier", t.Name(), "index", i)
			return
		}
		out = append(out, rec)
	})
	return out, len(out) > 0
}
