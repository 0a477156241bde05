// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Cell is one table cell of a listing row.
type Cell struct {
	Text  string `json:"text" yaml:"text"`
	Class string `json:"class,omitempty" yaml:"class,omitempty"`
	HTML  string `json:"html,omitempty" yaml:"html,omitempty"`
}

// Link is an anchor element found inside a listing row.
type Link struct {
	Text    string `json:"text" yaml:"text"`
	Href    string `json:"href" yaml:"href"`
	Class   string `json:"class,omitempty" yaml:"class,omitempty"`
	OnClick string `json:"onclick,omitempty" yaml:"onclick,omitempty"`
}

// RawListingRow is a snapshot of one rendered row of the profile listing.
// It is produced by the browser driver and consumed immediately by the
// extractor; it is never persisted.
type RawListingRow struct {
	Index     int      `json:"index" yaml:"index"`
	Cells     []Cell   `json:"cells" yaml:"cells"`
	GrayTexts []string `json:"grayTexts" yaml:"gray_texts"`
	Links     []Link   `json:"links" yaml:"links"`
	HTML      string   `json:"html" yaml:"html,omitempty"`
	Text      string   `json:"text" yaml:"text,omitempty"`
}

// CandidateRecord is one publication parsed from the profile listing,
// before enrichment.
type CandidateRecord struct {
	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
	Year    int      `json:"year" yaml:"year"`

	// YearConfirmed is false when no year could be parsed and Year holds
	// the current year as a placeholder.
	YearConfirmed bool `json:"yearConfirmed" yaml:"year_confirmed"`

	Journal   string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume    string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pages     string `json:"pages,omitempty" yaml:"pages,omitempty"`
	DOI       string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Citations int    `json:"citations" yaml:"citations"`

	// SourceID comes from the row permalink's citation_for_view parameter,
	// or is synthesized when the permalink is missing.
	SourceID   string `json:"sourceId" yaml:"source_id"`
	ProfileURL string `json:"profileUrl" yaml:"profile_url"`

	// Rules names the extraction rule that produced each derived field
	// (e.g. "year" -> "year-cell"). Diagnostic only.
	Rules map[string]string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// EnrichmentResult holds fields found for a candidate in the bibliographic
// search service. Empty fields defer to the candidate.
type EnrichmentResult struct {
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID     string   `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PDFURL   string   `json:"pdfUrl,omitempty" yaml:"pdf_url,omitempty"`
	Journal  string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume   string   `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pages    string   `json:"pages,omitempty" yaml:"pages,omitempty"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
}

// IsEmpty reports whether the enrichment found nothing.
func (e EnrichmentResult) IsEmpty() bool {
	return e.Abstract == "" && len(e.Keywords) == 0 && len(e.Authors) == 0 &&
		e.DOI == "" && e.PMID == "" && e.PDFURL == "" && e.Journal == "" &&
		e.Volume == "" && e.Pages == "" && e.Year == 0
}
