// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package network

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/pubsync/internal/reconcile"
)

// CrossRef works response structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title  []string `json:"title"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	Reference []struct {
		DOI string `json:"DOI"`
	} `json:"reference"`
}

// COCI citation record.
type cociCitation struct {
	Citing string `json:"citing"`
	Cited  string `json:"cited"`
}

// work is the subset of CrossRef metadata the graph uses.
type work struct {
	title      string
	year       int
	references []string
}

func (w work) apply(n *Node) {
	if w.title != "" {
		n.Label = w.title
	}
	if w.year > 0 {
		n.Year = w.year
	}
}

// lookupWork fetches title, year, and referenced DOIs for doi from CrossRef.
func (b *Builder) lookupWork(ctx context.Context, doi string) (work, bool) {
	u := crossrefBase + "/" + escapeDOI(doi)
	if b.mailto != "" {
		u += "?" + url.Values{"mailto": {b.mailto}}.Encode()
	}

	var resp crossrefResponse
	if !b.getJSON(ctx, u, &resp) {
		return work{}, false
	}

	msg := resp.Message
	w := work{}
	if len(msg.Title) > 0 {
		w.title = strings.TrimSpace(msg.Title[0])
	}
	if dp := msg.Issued.DateParts; len(dp) > 0 && len(dp[0]) > 0 {
		w.year = dp[0][0]
	}
	for _, ref := range msg.Reference {
		if d := reconcile.NormalizeDOI(ref.DOI); d != "" {
			w.references = append(w.references, d)
		}
	}
	return w, true
}

// citations returns the DOIs of works citing doi according to COCI.
func (b *Builder) citations(ctx context.Context, doi string) []string {
	var records []cociCitation
	if !b.getJSON(ctx, cociBase+"/citations/"+escapeDOI(doi), &records) {
		return nil
	}
	var out []string
	for _, r := range records {
		if c := reconcile.NormalizeDOI(r.Citing); c != "" {
			out = append(out, c)
		}
	}
	return out
}
