// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one sync: load the profile listing, extract
// candidates, enrich them, merge into the existing dataset, and write the
// result. Collaborators are injected so a run can be exercised without a
// browser or network.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pdiddy/pubsync/internal/browser"
	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/internal/reconcile"
	"github.com/pdiddy/pubsync/internal/scrape"
	"github.com/pdiddy/pubsync/pkg/types"
)

// ErrNoSource is returned when neither the browser nor the HTTP fetch
// could load the profile.
var ErrNoSource = errors.New("profile could not be loaded")

// RowSource loads every listing row through a browser.
type RowSource interface {
	LoadAllRows(ctx context.Context, profileURL string) (browser.Snapshot, error)
}

// HTMLFetcher retrieves the static profile page.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Enricher enriches candidates in order.
type Enricher interface {
	Batch(ctx context.Context, candidates []types.CandidateRecord) (enrich.BatchResult, error)
}

// Deps are the collaborators of a run. Rows, Fetcher, and Enricher may be
// nil: a nil Rows skips the browser, a nil Enricher keeps scraped fields
// only.
type Deps struct {
	Rows      RowSource
	Fetcher   HTMLFetcher
	Enricher  Enricher
	Extractor *scrape.Extractor
	Logger    *slog.Logger
	Now       func() time.Time

	// Out receives the human-readable summary. Nil discards.
	Out io.Writer
}

// Report describes a completed run.
type Report struct {
	Via          string // "browser" or "http"
	Candidates   int
	Matched      int
	WithAbstract int
	Merge        reconcile.Result
	Dataset      *types.Dataset
	Written      bool

	// Backup is where an unreadable dataset was moved before writing.
	Backup string
}

// Run executes a sync with cfg. The dataset at cfg.OutputPath is only
// replaced when the merge produced publications and DryRun is off.
func Run(ctx context.Context, cfg types.SyncConfig, deps Deps) (Report, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = scrape.New(cfg.Extract, scrape.WithLogger(logger))
	}

	var report Report

	candidates, via, err := collect(ctx, cfg, deps, extractor, logger)
	if err != nil {
		return report, err
	}
	report.Via = via
	report.Candidates = len(candidates)
	fmt.Fprintf(out, "Extracted %d publications via %s\n", len(candidates), via)

	fresh, err := enrichAll(ctx, deps.Enricher, candidates, now, &report)
	if err != nil {
		return report, err
	}

	existing, err := dataset.Read(cfg.OutputPath)
	unreadable := err != nil
	if unreadable {
		logger.Warn("pipeline: existing dataset unreadable, starting empty", "path", cfg.OutputPath, "error", err)
		existing = &types.Dataset{Publications: []types.Publication{}}
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sync interrupted: %w", err)
	}

	runAt := now()
	merged, err := reconcile.Merge(fresh, existing.Publications, runAt)
	report.Merge = merged
	for _, s := range merged.Skips {
		logger.Warn("pipeline: skipped publication", "title", s.Title, "reason", s.Reason)
	}
	if err != nil {
		return report, fmt.Errorf("merging %d fresh into %d existing: %w", len(fresh), len(existing.Publications), err)
	}

	ds := &types.Dataset{
		Publications: merged.Publications,
		LastSync:     types.Timestamp(runAt),
		Metadata:     existing.Metadata,
	}
	ds.Metadata.GoogleScholarProfile = cfg.ProfileURL
	if len(candidates) > 0 {
		ds.Metadata.LastGoogleScholarSync = types.Timestamp(runAt)
	}
	if report.WithAbstract > 0 {
		ds.Metadata.LastEuropePMCSync = types.Timestamp(runAt)
	}
	ds.TotalCount = len(ds.Publications)
	report.Dataset = ds

	fmt.Fprintf(out, "Merged: %d added, %d updated, %d manual preserved, %d dropped, %d skipped\n",
		merged.Added, merged.Updated, merged.Preserved, merged.Dropped, merged.Skipped)

	switch {
	case cfg.DryRun:
		fmt.Fprintf(out, "Dry run: %s not written (%s)\n", cfg.OutputPath, dataset.Summary(ds))
		return report, nil
	case len(ds.Publications) == 0:
		logger.Warn("pipeline: nothing to write", "path", cfg.OutputPath)
		return report, nil
	}

	if unreadable {
		backup, err := dataset.Backup(cfg.OutputPath, runAt)
		if err != nil {
			return report, err
		}
		report.Backup = backup
		logger.Warn("pipeline: moved unreadable dataset aside", "backup", backup)
		fmt.Fprintf(out, "Kept unreadable %s as %s\n", cfg.OutputPath, backup)
	}

	if err := dataset.Write(ds, cfg.OutputPath); err != nil {
		return report, fmt.Errorf("writing dataset: %w", err)
	}
	report.Written = true
	fmt.Fprintf(out, "Wrote %s: %s\n", cfg.OutputPath, dataset.Summary(ds))
	return report, nil
}

// collect loads the listing through the browser, falling back to a static
// fetch when the browser is unavailable or navigation fails.
func collect(ctx context.Context, cfg types.SyncConfig, deps Deps, ex *scrape.Extractor, logger *slog.Logger) ([]types.CandidateRecord, string, error) {
	var browserErr error
	if deps.Rows != nil && !cfg.Browser.Disabled {
		snap, err := deps.Rows.LoadAllRows(ctx, cfg.ProfileURL)
		if err == nil {
			return ex.Extract(scrape.Input{Rows: snap.Rows, HTML: snap.HTML}), "browser", nil
		}
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("sync interrupted: %w", ctx.Err())
		}
		browserErr = err
		logger.Warn("pipeline: browser path failed, falling back to HTTP", "error", err)
	}

	if deps.Fetcher == nil {
		if browserErr != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrNoSource, browserErr)
		}
		return nil, "", ErrNoSource
	}
	html, err := deps.Fetcher.FetchHTML(ctx, cfg.ProfileURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrNoSource, errors.Join(browserErr, err))
	}
	return ex.Extract(scrape.Input{HTML: html}), "http", nil
}

func enrichAll(ctx context.Context, e Enricher, candidates []types.CandidateRecord, now func() time.Time, report *Report) ([]types.Publication, error) {
	if e == nil {
		pubs := make([]types.Publication, len(candidates))
		for i, c := range candidates {
			pubs[i] = enrich.BuildPublication(c, types.EnrichmentResult{}, now())
		}
		return pubs, nil
	}
	res, err := e.Batch(ctx, candidates)
	if err != nil {
		return nil, err
	}
	report.Matched = res.Matched
	report.WithAbstract = res.WithAbstract
	return res.Publications, nil
}
