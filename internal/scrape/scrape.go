// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape turns profile listing rows into candidate publication
// records. Extraction runs a chain of tiers from most to least specific
// markup assumptions; a later tier is consulted only when every earlier
// tier produced nothing. Extraction never fails: rows that cannot be
// parsed are skipped and a run with no candidates is reported through the
// logger.
package scrape

import (
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/pubsync/pkg/types"
)

// partialThreshold is the candidate count below which a load is
// reported as probably incomplete.
const partialThreshold = 10

// Input is what the extractor sees of the listing page. Rows carries
// live DOM snapshots from the browser; HTML carries the serialized page.
// Either may be empty.
type Input struct {
	Rows []types.RawListingRow
	HTML string
}

// Tier is one extraction strategy.
type Tier interface {
	Name() string
	TryExtract(in Input) ([]types.CandidateRecord, bool)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithClock sets the time source used for the current-year bound and
// synthetic source IDs.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.parser.now = now }
}

// WithTiers replaces the default tier chain.
func WithTiers(tiers ...Tier) Option {
	return func(e *Extractor) { e.tiers = tiers }
}

// Extractor runs the tier chain.
type Extractor struct {
	parser *fieldParser
	tiers  []Tier
	logger *slog.Logger
}

// New returns an Extractor with the structured, tag-based and pattern
// tiers in that order.
func New(cfg types.ExtractConfig, opts ...Option) *Extractor {
	e := &Extractor{
		parser: &fieldParser{cfg: cfg, now: time.Now},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.tiers == nil {
		e.tiers = []Tier{
			&StructuredTier{parser: e.parser, logger: e.logger},
			&TagTier{parser: e.parser, logger: e.logger},
			&PatternTier{parser: e.parser, logger: e.logger},
		}
	}
	return e
}

// Extract returns the deduplicated candidates from the first tier that
// yields any.
func (e *Extractor) Extract(in Input) []types.CandidateRecord {
	for _, tier := range e.tiers {
		recs, ok := tier.TryExtract(in)
		if !ok || len(recs) == 0 {
			e.logger.Debug("scrape: tier yielded nothing", "tier", tier.Name())
			continue
		}
		out := Deduplicate(recs)
		e.logger.Info("scrape: extracted candidates",
			"tier", tier.Name(), "raw", len(recs), "unique", len(out))
		e.diagnose(len(out))
		return out
	}
	e.diagnose(0)
	return []types.CandidateRecord{}
}

func (e *Extractor) diagnose(n int) {
	switch {
	case n == 0:
		e.logger.Warn("scrape: no publications found",
			"possible_causes", strings.Join([]string{
				"the profile host is blocking automated access",
				"the page loads rows dynamically and they never rendered",
				"the listing markup has changed",
				"the host is rate limiting this client",
			}, "; "))
	case n < partialThreshold:
		e.logger.Warn("scrape: only a few publications found, the listing may be partially loaded",
			"count", n)
	}
}

// Deduplicate drops candidates whose lowercase title or source ID was
// already seen. The first occurrence wins.
func Deduplicate(recs []types.CandidateRecord) []types.CandidateRecord {
	seenTitle := make(map[string]bool, len(recs))
	seenID := make(map[string]bool, len(recs))
	out := make([]types.CandidateRecord, 0, len(recs))
	for _, r := range recs {
		title := strings.ToLower(strings.TrimSpace(r.Title))
		if seenTitle[title] || (r.SourceID != "" && seenID[r.SourceID]) {
			continue
		}
		seenTitle[title] = true
		if r.SourceID != "" {
			seenID[r.SourceID] = true
		}
		out = append(out, r)
	}
	return out
}

// ParseRow runs the shared field rules over one structured row. It is
// used by the inspect command to show which rule produced each field.
func (e *Extractor) ParseRow(row types.RawListingRow) (types.CandidateRecord, bool) {
	f, ok := structuredFields(row)
	if !ok {
		return types.CandidateRecord{}, false
	}
	return e.parser.build(f)
}
