// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pdiddy/pubsync/pkg/types"
)

// TagTier parses the serialized page with goquery, keyed on the listing's
// class names but tolerant of missing cells.
type TagTier struct {
	parser *fieldParser
	logger *slog.Logger
}

func (t *TagTier) Name() string { return "tag-based" }

func (t *TagTier) TryExtract(in Input) ([]types.CandidateRecord, bool) {
	doc, err := documentFor(in)
	if err != nil {
		t.logger.Warn("scrape: cannot parse page HTML", "tier", t.Name(), "error", err)
		return nil, false
	}
	if doc == nil {
		return nil, false
	}

	var out []types.CandidateRecord
	doc.Find("tr.gsc_a_tr").Each(func(i int, row *goquery.Selection) {
		link := firstNonEmpty(row,
			"a.gsc_a_at",
			`a[href*="citation_for_view"]`,
			"a",
		)
		f := rowFields{
			index:    i,
			title:    strings.TrimSpace(link.Text()),
			href:     link.AttrOr("href", ""),
			rowText:  spacedText(row),
			idPrefix: "gs-tag",
		}

		grays := row.Find("div.gs_gray")
		if grays.Length() == 0 {
			grays = row.Find(`[class*="gray"]`)
		}
		if grays.Length() > 0 {
			f.authorsText = strings.TrimSpace(grays.Eq(0).Text())
		}
		if grays.Length() > 1 {
			f.venue = strings.TrimSpace(grays.Eq(1).Text())
		}

		cite := row.Find("a.gsc_a_ac, a.gsc_a_c").First()
		f.citationsText = strings.TrimSpace(cite.Text())
		if f.citationsText == "" {
			f.citationsText = strings.TrimSpace(row.Find("td.gsc_a_c").Text())
		}
		f.onclick = cite.AttrOr("onclick", "")

		f.yearText = strings.TrimSpace(row.Find("td.gsc_a_y").Text())
		if f.yearText == "" {
			f.yearText = strings.TrimSpace(row.Find(".gsc_a_y span, .gsc_a_h").First().Text())
		}

		rec, ok := t.parser.build(f)
		if !ok {
			t.logger.Debug("scrape: skipping row without title", "tier", t.Name(), "index", i)
			return
		}
		out = append(out, rec)
	})
	return out, len(out) > 0
}

// documentFor parses the serialized page, or rebuilds a minimal table from
// the row snapshots when only those are available. It returns nil when
// there is nothing to parse.
func documentFor(in Input) (*goquery.Document, error) {
	src := in.HTML
	if strings.TrimSpace(src) == "" {
		if len(in.Rows) == 0 {
			return nil, nil
		}
		var b strings.Builder
		b.WriteString("<table><tbody>")
		for _, r := range in.Rows {
			fmt.Fprintf(&b, `<tr class="gsc_a_tr">%s</tr>`, r.HTML)
		}
		b.WriteString("</tbody></table>")
		src = b.String()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing listing html: %w", err)
	}
	return doc, nil
}

// firstNonEmpty returns the first element matching one of the selectors,
// in order, whose text is at least minTitleLen long. When none qualifies
// it returns the first match of the first selector that matched anything.
func firstNonEmpty(s *goquery.Selection, selectors ...string) *goquery.Selection {
	var fallback *goquery.Selection
	for _, sel := range selectors {
		m := s.Find(sel).First()
		if m.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(m.Text())) >= minTitleLen {
			return m
		}
		if fallback == nil {
			fallback = m
		}
	}
	if fallback == nil {
		return s.Find("a").First()
	}
	return fallback
}

// spacedText returns the text of s with a space between every text node,
// so adjacent cells do not run together ("2019Cited by").
func spacedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
