// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"log/slog"
	"strings"

	"github.com/pdiddy/pubsync/pkg/types"
)

// StructuredTier reads the live row snapshots taken by the browser. It
// expects the standard three-column layout: title block, citation count,
// year.
type StructuredTier struct {
	parser *fieldParser
	logger *slog.Logger
}

func (t *StructuredTier) Name() string { return "structured" }

func (t *StructuredTier) TryExtract(in Input) ([]types.CandidateRecord, bool) {
	if len(in.Rows) == 0 {
		return nil, false
	}
	var out []types.CandidateRecord
	for _, row := range in.Rows {
		f, ok := structuredFields(row)
		if !ok {
			t.logger.Warn("scrape: skipping row with unexpected layout",
				"tier", t.Name(), "index", row.Index, "cells", len(row.Cells))
			continue
		}
		rec, ok := t.parser.build(f)
		if !ok {
			t.logger.Debug("scrape: skipping row without title", "tier", t.Name(), "index", row.Index)
			continue
		}
		out = append(out, rec)
	}
	return out, len(out) > 0
}

// structuredFields maps a row snapshot onto rowFields. Rows with fewer
// than two cells or without a title link are rejected.
func structuredFields(row types.RawListingRow) (rowFields, bool) {
	if len(row.Cells) < 2 {
		return rowFields{}, false
	}
	title, ok := findLink(row.Links, "gsc_a_at")
	if !ok {
		return rowFields{}, false
	}

	f := rowFields{
		index:    row.Index,
		title:    title.Text,
		href:     title.Href,
		rowText:  row.Text,
		idPrefix: "gs",
	}
	if len(row.GrayTexts) > 0 {
		f.authorsText = row.GrayTexts[0]
	}
	if len(row.GrayTexts) > 1 {
		f.venue = row.GrayTexts[1]
	}
	if cite, ok := findLink(row.Links, "gsc_a_ac"); ok && strings.TrimSpace(cite.Text) != "" {
		f.citationsText = cite.Text
	} else {
		f.citationsText = row.Cells[1].Text
	}
	if len(row.Cells) > 2 {
		f.yearText = row.Cells[2].Text
	}
	return f, true
}

// findLink returns the first link carrying class.
func findLink(links []types.Link, class string) (types.Link, bool) {
	for _, l := range links {
		for _, c := range strings.Fields(l.Class) {
			if c == class {
				return l, true
			}
		}
	}
	return types.Link{}, false
}
