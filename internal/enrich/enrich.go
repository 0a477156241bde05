// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich looks up scraped candidates in Europe PMC and folds the
// higher-confidence fields it finds (abstract, full author list,
// identifiers) back into publication records. Lookups are sequential and
// paced; a failed lookup degrades to an empty result rather than an error.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pubsync/internal/httputil"
	"github.com/pdiddy/pubsync/internal/reconcile"
	"github.com/pdiddy/pubsync/internal/scrape"
	"github.com/pdiddy/pubsync/pkg/types"
)

// pubMedBase prefixes a PMID to form its PubMed page.
const pubMedBase = "https://pubmed.ncbi.nlm.nih.gov/"

// Enricher queries Europe PMC for candidates.
type Enricher struct {
	api    *europePMCClient
	pacer  *httputil.Pacer
	logger *slog.Logger
	now    func() time.Time

	// Out receives one progress line per candidate. Nil discards.
	Out io.Writer
}

// New returns an Enricher configured from cfg.
func New(cfg types.EnrichConfig, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Enricher{
		api: &europePMCClient{
			client:    &http.Client{Timeout: timeout},
			userAgent: cfg.UserAgent,
			email:     cfg.Email,
		},
		pacer:  httputil.NewPacer(cfg.Delay),
		logger: logger,
		now:    time.Now,
	}
}

// Enrich looks up one candidate. It never fails: transport errors, non-2xx
// responses, malformed JSON, and empty result lists all yield an empty
// EnrichmentResult.
func (e *Enricher) Enrich(ctx context.Context, c types.CandidateRecord) types.EnrichmentResult {
	query := BuildQuery(c)
	res, err := e.api.search(ctx, query)
	if err != nil {
		e.logger.Warn("enrich: lookup failed", "title", c.Title, "error", err)
		return types.EnrichmentResult{}
	}
	if res == nil {
		e.logger.Debug("enrich: no match", "query", query)
		return types.EnrichmentResult{}
	}
	return e.fromResult(res)
}

func (e *Enricher) fromResult(r *europePMCResult) types.EnrichmentResult {
	out := types.EnrichmentResult{
		Abstract: CleanAbstract(r.AbstractText),
		DOI:      strings.TrimSpace(r.DOI),
		PMID:     strings.TrimSpace(r.PMID),
		PDFURL:   r.fullTextURL(),
		Journal:  strings.TrimSpace(r.journal()),
		Volume:   strings.TrimSpace(r.JournalInfo.Volume),
		Pages:    strings.TrimSpace(r.PageInfo),
	}
	for _, kw := range r.KeywordList.Keyword {
		if kw = strings.TrimSpace(kw); kw != "" {
			out.Keywords = append(out.Keywords, kw)
		}
	}
	if y, err := strconv.Atoi(strings.TrimSpace(r.PubYear)); err == nil && y >= 1900 && y <= e.now().Year() {
		out.Year = y
	}
	if authors := scrape.SplitAuthors(strings.TrimSuffix(strings.TrimSpace(r.AuthorString), ".")); len(authors) > 0 {
		out.Authors = authors
	}
	return out
}

// BuildPublication combines a candidate with its enrichment. Enrichment
// fields win where present; the candidate fills the rest.
func BuildPublication(c types.CandidateRecord, e types.EnrichmentResult, now time.Time) types.Publication {
	p := types.Publication{
		Title:       c.Title,
		Authors:     c.Authors,
		Year:        c.Year,
		Journal:     firstNonEmpty(e.Journal, c.Journal),
		Volume:      firstNonEmpty(e.Volume, c.Volume),
		Pages:       firstNonEmpty(e.Pages, c.Pages),
		DOI:         firstNonEmpty(e.DOI, c.DOI),
		PMID:        e.PMID,
		ExternalID:  c.SourceID,
		Abstract:    e.Abstract,
		Keywords:    e.Keywords,
		Citations:   c.Citations,
		PDFURL:      e.PDFURL,
		ProfileURL:  c.ProfileURL,
		LastUpdated: types.Timestamp(now),
		Source:      types.SourceScholar,
	}
	if len(e.Authors) > 0 {
		p.Authors = e.Authors
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if e.Year > 0 {
		p.Year = e.Year
	}
	if p.PMID != "" {
		p.PubMedURL = pubMedBase + p.PMID
	}
	if p.Abstract != "" {
		p.Source = types.SourceHybrid
	}
	p.ID = reconcile.PublicationID(p.Year, p.Title)
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// BatchResult summarizes a Batch run.
type BatchResult struct {
	Publications []types.Publication
	Matched      int // candidates with any enrichment
	WithAbstract int // candidates that gained an abstract
}

// Batch enriches candidates one at a time, pacing requests, and returns
// the resulting publications in candidate order. It stops early only if
// ctx is cancelled.
func (e *Enricher) Batch(ctx context.Context, candidates []types.CandidateRecord) (BatchResult, error) {
	out := e.Out
	if out == nil {
		out = io.Discard
	}

	result := BatchResult{Publications: make([]types.Publication, 0, len(candidates))}
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("enrichment interrupted: %w", err)
		}
		if err := e.pacer.Wait(ctx); err != nil {
			return result, fmt.Errorf("enrichment interrupted: %w", err)
		}
		enr := e.Enrich(ctx, c)
		if !enr.IsEmpty() {
			result.Matched++
		}
		if enr.Abstract != "" {
			result.WithAbstract++
		}
		pub := BuildPublication(c, enr, e.now())
		result.Publications = append(result.Publications, pub)

		status := "no match"
		switch {
		case enr.Abstract != "":
			status = "abstract"
		case !enr.IsEmpty():
			status = "metadata"
		}
		fmt.Fprintf(out, "[%d/%d] %s: %s\n", i+1, len(candidates), status, truncate(c.Title, 60))
	}
	return result, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
