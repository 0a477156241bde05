// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pubsync pipeline:
// the scraped candidate records, enrichment results, and the persisted
// publication dataset consumed by the lab website.
package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampLayout is the timestamp format used in the dataset file. It
// matches what the website expects (millisecond ISO-8601, UTC "Z").
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in TimestampLayout, normalized to UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Source is the provenance of a persisted publication. It governs whether
// a merge may overwrite the record.
type Source string

const (
	SourceScholar   Source = "google_scholar"
	SourceHybrid    Source = "hybrid"
	SourceEuropePMC Source = "europe_pmc"
	SourceManual    Source = "manual"
)

// IsManual reports whether the record was curated by hand.
func (s Source) IsManual() bool {
	return s == SourceManual
}

// Publication is one entry of the persisted dataset. Field names follow
// the JSON document the website reads.
type Publication struct {
	// ID is a stable slug ("pub-2020-some-title") preserved across updates.
	ID string `json:"id" yaml:"id"`

	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
	Year    int      `json:"year" yaml:"year"`

	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume  string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pages   string `json:"pages,omitempty" yaml:"pages,omitempty"`

	DOI  string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// ExternalID is the profile listing's per-row identifier, the primary
	// identity key for automated records.
	ExternalID string `json:"googleScholarId,omitempty" yaml:"external_id,omitempty"`

	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	Citations int `json:"citations" yaml:"citations"`

	PDFURL     string `json:"pdfUrl,omitempty" yaml:"pdf_url,omitempty"`
	PubMedURL  string `json:"pubmedUrl,omitempty" yaml:"pubmed_url,omitempty"`
	ProfileURL string `json:"scholarUrl,omitempty" yaml:"profile_url,omitempty"`

	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Featured *bool    `json:"featured,omitempty" yaml:"featured,omitempty"`

	LastUpdated string `json:"lastUpdated" yaml:"last_updated"`
	Source      Source `json:"source" yaml:"source"`

	// raw holds the original document bytes of a manual record so fields
	// this type does not model survive a rewrite.
	raw json.RawMessage
}

// UnmarshalJSON decodes a publication and retains the raw bytes of manual
// records.
func (p *Publication) UnmarshalJSON(data []byte) error {
	type plain Publication
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Publication(v)
	if p.Source.IsManual() {
		p.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// MarshalJSON encodes a publication. Manual records loaded from disk are
// written back exactly as read.
func (p Publication) MarshalJSON() ([]byte, error) {
	if p.Source.IsManual() && len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Publication
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(p)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DatasetMetadata records per-source sync times.
type DatasetMetadata struct {
	GoogleScholarProfile  string `json:"googleScholarProfile" yaml:"google_scholar_profile"`
	LastGoogleScholarSync string `json:"lastGoogleScholarSync,omitempty" yaml:"last_google_scholar_sync,omitempty"`
	LastEuropePMCSync     string `json:"lastEuropePmcSync,omitempty" yaml:"last_europe_pmc_sync,omitempty"`
}

// Dataset is the persisted publications document. It is read once at the
// start of a run and replaced wholesale at the end.
type Dataset struct {
	Publications []Publication   `json:"publications" yaml:"publications"`
	LastSync     string          `json:"lastSync" yaml:"last_sync"`
	TotalCount   int             `json:"totalCount" yaml:"total_count"`
	Metadata     DatasetMetadata `json:"metadata" yaml:"metadata"`
}

// CountBySource returns the number of publications per provenance.
func (d *Dataset) CountBySource() map[Source]int {
	counts := make(map[Source]int)
	for _, p := range d.Publications {
		counts[p.Source]++
	}
	return counts
}
