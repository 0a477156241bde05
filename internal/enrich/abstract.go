// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()

	inlineSpace = regexp.MustCompile(`[^\S\n]+`)
	spacedBreak = regexp.MustCompile(` *\n *`)
	extraBreaks = regexp.MustCompile(`\n{3,}`)
)

// CleanAbstract converts an HTML abstract into the plain-text form the
// website renders: headings become bold paragraphs, paragraphs and line
// breaks become newlines, and all other markup is dropped.
func CleanAbstract(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ugcPolicy.Sanitize(raw)))
	if err != nil {
		return normalizeWhitespace(html.UnescapeString(strictPolicy.Sanitize(raw)))
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		replaceWithText(s, "\n\n**%s**\n\n")
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		replaceWithText(s, "\n\n%s")
	})

	return normalizeWhitespace(doc.Text())
}

// replaceWithText swaps s for its trimmed text wrapped by format, or
// removes it when it has no text.
func replaceWithText(s *goquery.Selection, format string) {
	text := strings.TrimSpace(s.Text())
	if text == "" {
		s.Remove()
		return
	}
	s.ReplaceWithHtml(html.EscapeString(strings.Replace(format, "%s", text, 1)))
}

func normalizeWhitespace(s string) string {
	s = inlineSpace.ReplaceAllString(s, " ")
	s = spacedBreak.ReplaceAllString(s, "\n")
	s = extraBreaks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
