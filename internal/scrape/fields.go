// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/pubsync/pkg/types"
)

// minTitleLen is the shortest title accepted as a publication.
const minTitleLen = 5

var (
	yearPattern       = regexp.MustCompile(`\b(19\d{2}|20[0-2]\d)\b`)
	firstIntPattern   = regexp.MustCompile(`\d[\d,]*`)
	citedByPattern    = regexp.MustCompile(`(?i)cited by\s*(\d[\d,]*)`)
	citShortPattern   = regexp.MustCompile(`(?i)(\d+)\s*cit`)
	bracketPattern    = regexp.MustCompile(`\[(\d+)\]`)
	sourceIDPattern   = regexp.MustCompile(`citation_for_view=([^&#]+)`)
	doiPattern        = regexp.MustCompile(`(?i)\bDOI[:\s]+(10\.\d{4,9}/[^\s,;]+)`)
	authorPrefix      = regexp.MustCompile(`^([A-Z][a-z]+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*),\s*`)
	authorsOnlyVenue  = regexp.MustCompile(`^[A-Z][a-z]+\s+[A-Z]`)
	capitalizedRun    = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	digitRun          = regexp.MustCompile(`\d+`)
	trailingNumbers   = regexp.MustCompile(`(?:,\s*|\s+)\d[\d().\-–:,\s]*$`)
	standaloneYear    = regexp.MustCompile(`(?:^|,\s*|\s+)(?:19\d{2}|20[0-2]\d)\s*(,|$)`)
	volumePagesSuffix = regexp.MustCompile(`[\s,]+(\d+)\s*(?:\((\d+)\))?(?:\s*,\s*(\d+(?:\s*[-–]\s*\d+)?))?\s*$`)
	edgeCommas        = regexp.MustCompile(`^[,\s]+|[,\s]+$`)
)

// rule is one ranked field extractor. apply returns false when the rule
// does not fire and the next rule should be tried.
type rule[T any] struct {
	name  string
	apply func() (T, bool)
}

// firstMatch runs rules in order and returns the first value produced,
// together with the name of the rule that fired.
func firstMatch[T any](rules ...rule[T]) (T, string, bool) {
	for _, r := range rules {
		if v, ok := r.apply(); ok {
			return v, r.name, true
		}
	}
	var zero T
	return zero, "", false
}

// rowFields is the tier-independent view of one listing row. Each tier
// fills what it can find; fieldParser.build applies the same derivation
// rules to all of them.
type rowFields struct {
	index         int
	title         string
	href          string
	authorsText   string
	venue         string
	yearText      string
	citationsText string
	onclick       string
	rowText       string
	idPrefix      string
	minTitle      int

	// loose enables the row-text rules used by the pattern tier.
	loose bool
}

// fieldParser derives candidate fields from raw row text.
type fieldParser struct {
	cfg types.ExtractConfig
	now func() time.Time
}

func (p *fieldParser) currentYear() int {
	return p.now().Year()
}

// matchYear returns the first plausible publication year in text.
func (p *fieldParser) matchYear(text string) (int, bool) {
	for _, m := range yearPattern.FindAllStringSubmatch(text, -1) {
		y, err := strconv.Atoi(m[1])
		if err == nil && y >= 1900 && y <= p.currentYear() {
			return y, true
		}
	}
	return 0, false
}

// firstInt parses the first integer in text, ignoring thousands separators.
func firstInt(text string) (int, bool) {
	m := firstIntPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func submatchInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return firstInt(m[1])
}

// sanitizeCitations rejects counts that are really a neighbouring year
// or page number. The returned rule names the rejection, if any.
func (p *fieldParser) sanitizeCitations(n int) (int, string) {
	floor := p.cfg.CitationYearFloor
	if floor <= 0 {
		floor = 1900
	}
	max := p.cfg.MaxCitations
	if max <= 0 {
		max = 10000
	}
	switch {
	case n < 0:
		return 0, "citations-negative"
	case n >= floor && n <= p.currentYear():
		return 0, "citations-rejected-year"
	case n > max:
		return 0, "citations-rejected-bound"
	}
	return n, ""
}

// isTruncationMarker reports whether an author entry is an ellipsis or
// "et al." placeholder rather than a name.
func isTruncationMarker(entry string) bool {
	s := strings.ToLower(strings.TrimSpace(entry))
	switch s {
	case "", "...", "…", "et al", "et al.":
		return true
	}
	return strings.HasPrefix(s, "...") || strings.HasPrefix(s, "…")
}

// SplitAuthors splits a comma-separated author line, dropping empty
// entries and truncation markers. It never returns nil.
func SplitAuthors(text string) []string {
	authors := []string{}
	for _, part := range strings.Split(text, ",") {
		a := strings.TrimSpace(part)
		if isTruncationMarker(a) {
			continue
		}
		authors = append(authors, a)
	}
	return authors
}

// venueLooksLikeAuthors reports whether a venue line holds only names,
// which happens when the author list wraps into the second gray line.
func venueLooksLikeAuthors(venue string) bool {
	if venue == "" || strings.ContainsAny(venue, "0123456789") {
		return false
	}
	return authorsOnlyVenue.MatchString(venue)
}

func trimCommas(s string) string {
	return strings.TrimSpace(edgeCommas.ReplaceAllString(s, ""))
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// deriveJournal reduces a venue line ("Journal of Widgets, 45(2), 2019")
// to the journal name. Only a year standing alone between commas or at the
// end is removed, so preprint numbers like "2020.05.01.072751" survive
// until the trailing numbering is cut.
func deriveJournal(venue string) string {
	if venue == "" {
		return ""
	}
	journal := stripYears(venue)

	if m := authorPrefix.FindStringSubmatchIndex(journal); m != nil {
		if rest := journal[m[1]:]; hasLetter(rest) {
			journal = rest
		}
	}
	journal = trimCommas(trailingNumbers.ReplaceAllString(journal, ""))

	if len(journal) < 3 || !hasLetter(journal) || unicode.IsDigit(rune(journal[0])) {
		journal = venue
		if loc := digitRun.FindStringIndex(venue); loc != nil {
			journal = venue[:loc[0]]
		}
		journal = trimCommas(journal)
		if len(journal) < 3 {
			if m := capitalizedRun.FindStringSubmatch(venue); m != nil {
				journal = strings.TrimSpace(m[1])
			}
		}
	}
	return journal
}

// stripYears removes standalone years, keeping the comma that separated a
// mid-line year from what follows.
func stripYears(venue string) string {
	return trimCommas(standaloneYear.ReplaceAllString(venue, "$1"))
}

// parseVolumePages extracts "45 (2), 123-130" style numbering from a venue
// line after the year has been removed.
func parseVolumePages(venue string) (volume, pages string) {
	text := stripYears(venue)
	m := volumePagesSuffix.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return m[1], strings.ReplaceAll(m[3], " ", "")
}

func (p *fieldParser) sourceID(href string, index int, prefix string) (string, string) {
	if m := sourceIDPattern.FindStringSubmatch(href); m != nil {
		return m[1], "source-id-permalink"
	}
	if prefix == "" {
		prefix = "gs"
	}
	return fmt.Sprintf("%s-%d-%d", prefix, p.now().UnixNano(), index), "source-id-synthetic"
}

func (p *fieldParser) profileURL(href, sourceID string) string {
	host := strings.TrimRight(p.cfg.ProfileHost, "/")
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case href != "":
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}
		return host + href
	}
	return fmt.Sprintf("%s/citations?view_op=view_citation&hl=en&user=%s&citation_for_view=%s",
		host, p.cfg.UserID, sourceID)
}

// build applies the shared derivation rules to one row. It reports false
// when the row has no usable title.
func (p *fieldParser) build(f rowFields) (types.CandidateRecord, bool) {
	title := strings.Join(strings.Fields(f.title), " ")
	minTitle := f.minTitle
	if minTitle < minTitleLen {
		minTitle = minTitleLen
	}
	if len(title) < minTitle {
		return types.CandidateRecord{}, false
	}

	rules := make(map[string]string)

	authorsText := strings.TrimSpace(f.authorsText)
	venue := strings.TrimSpace(f.venue)
	if venueLooksLikeAuthors(venue) {
		if authorsText != "" {
			authorsText += ", " + venue
		} else {
			authorsText = venue
		}
		venue = ""
		rules["authors"] = "authors-wrapped-venue"
	}

	yearRules := []rule[int]{
		{"year-cell", func() (int, bool) { return p.matchYear(f.yearText) }},
		{"year-venue", func() (int, bool) { return p.matchYear(venue) }},
	}
	if f.loose {
		yearRules = append(yearRules,
			rule[int]{"year-row-text", func() (int, bool) { return p.matchYear(f.rowText) }})
	}
	year, yearRule, confirmed := firstMatch(yearRules...)
	if !confirmed {
		year, yearRule = p.currentYear(), "year-default"
	}
	rules["year"] = yearRule

	citationRules := []rule[int]{
		{"citations-cell", func() (int, bool) { return firstInt(f.citationsText) }},
		{"citations-onclick", func() (int, bool) { return firstInt(f.onclick) }},
		{"citations-cited-by", func() (int, bool) { return submatchInt(citedByPattern, f.rowText) }},
	}
	if f.loose {
		citationRules = append(citationRules,
			rule[int]{"citations-cit-suffix", func() (int, bool) { return submatchInt(citShortPattern, f.rowText) }},
			rule[int]{"citations-bracket", func() (int, bool) { return submatchInt(bracketPattern, f.rowText) }},
		)
	}
	citations, citRule, ok := firstMatch(citationRules...)
	if ok {
		var rejected string
		citations, rejected = p.sanitizeCitations(citations)
		if rejected != "" {
			citRule = rejected
		}
		rules["citations"] = citRule
	}

	journal := deriveJournal(venue)
	if journal != "" {
		rules["journal"] = "journal-venue"
	}
	volume, pages := parseVolumePages(venue)

	var doi string
	if m := doiPattern.FindStringSubmatch(venue + " " + title); m != nil {
		doi = strings.TrimRight(m[1], ".")
		rules["doi"] = "doi-pattern"
	}

	sourceID, idRule := p.sourceID(f.href, f.index, f.idPrefix)
	rules["source_id"] = idRule

	return types.CandidateRecord{
		Title:         title,
		Authors:       SplitAuthors(authorsText),
		Year:          year,
		YearConfirmed: confirmed,
		Journal:       journal,
		Volume:        volume,
		Pages:         pages,
		DOI:           doi,
		Citations:     citations,
		SourceID:      sourceID,
		ProfileURL:    p.profileURL(f.href, sourceID),
		Rules:         rules,
	}, true
}
