// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser loads the profile listing in a headless browser and
// expands it until every row is rendered. The reveal-more loop is driven
// by the pure Advance step so its termination can be tested without a
// browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/pubsync/pkg/types"
)

// RowSelector matches one rendered listing row.
const RowSelector = "tr.gsc_a_tr"

// RevealSelectors locate the "show more" control, most specific first.
var RevealSelectors = []string{
	"button#gsc_bpf_more",
	"a.gsc_bpf_more",
	`button[onclick*="gsc_bpf_more"]`,
	`a[onclick*="gsc_bpf_more"]`,
	`button[aria-label*="more"]`,
	`a[aria-label*="more"]`,
	"#gsc_bpf_more",
	".gsc_bpf_more",
}

// ErrNoRows is returned by Page.WaitForRows when no row rendered in time.
var ErrNoRows = errors.New("no listing rows rendered")

// Control is a visible element that reveals more rows when clicked.
type Control interface {
	Selector() string
	Click(ctx context.Context) error
}

// Page is the subset of browser page operations the driver needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitForRows(ctx context.Context, timeout time.Duration) error
	CountRows(ctx context.Context) (int, error)
	FindReveal(ctx context.Context, selectors []string) (Control, bool)
	ScrollToBottom(ctx context.Context) error
	Rows(ctx context.Context) ([]types.RawListingRow, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// PageOpener creates pages. *Launcher is the production implementation.
type PageOpener interface {
	NewPage(ctx context.Context) (Page, error)
}

// Snapshot is the fully expanded listing: structured row snapshots plus
// the serialized page for the HTML-based extraction tiers.
type Snapshot struct {
	Rows []types.RawListingRow
	HTML string
}

// RevealAction is the next step of the reveal-more loop.
type RevealAction int

const (
	RevealClick RevealAction = iota
	RevealScroll
	RevealStop
)

func (a RevealAction) String() string {
	switch a {
	case RevealClick:
		return "click"
	case RevealScroll:
		return "scroll"
	}
	return "stop"
}

// RevealState carries the reveal-more loop between iterations.
type RevealState struct {
	Previous int // row count before the last reveal
	Current  int // row count after the last reveal
	Attempts int // reveals performed so far
	Stalls   int // consecutive reveals that added no rows
}

// stallLimit is how many unproductive reveals end the loop.
const stallLimit = 1

// Advance folds an observed row count into state and decides what to do
// next. It stops once a reveal leaves the count unchanged or after
// maxAttempts reveals; otherwise it clicks the control when one was found
// and scrolls when not.
func Advance(state RevealState, observed int, controlFound bool, maxAttempts int) (RevealState, RevealAction) {
	next := state
	next.Previous = state.Current
	next.Current = observed

	if state.Attempts > 0 {
		if observed <= state.Current {
			next.Stalls++
		} else {
			next.Stalls = 0
		}
	}
	if next.Stalls >= stallLimit || next.Attempts >= maxAttempts {
		return next, RevealStop
	}

	next.Attempts++
	if controlFound {
		return next, RevealClick
	}
	return next, RevealScroll
}

// Driver loads a profile listing and reveals all of its rows.
type Driver struct {
	opener PageOpener
	cfg    types.BrowserConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewDriver returns a Driver that opens pages with opener.
func NewDriver(opener PageOpener, cfg types.BrowserConfig, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRevealAttempts <= 0 {
		cfg.MaxRevealAttempts = 20
	}
	return &Driver{opener: opener, cfg: cfg, logger: logger, sleep: sleepContext}
}

// LoadAllRows navigates to profileURL, expands the listing, and returns
// the rendered rows. Navigation failures are returned so the caller can
// fall back to a plain HTTP fetch. A listing that never renders a row is
// not an error: the snapshot is simply empty.
func (d *Driver) LoadAllRows(ctx context.Context, profileURL string) (Snapshot, error) {
	page, err := d.opener.NewPage(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opening page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			d.logger.Debug("browser: closing page", "error", cerr)
		}
	}()

	navCtx := ctx
	if d.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, d.cfg.NavigationTimeout)
		defer cancel()
	}
	d.logger.Info("browser: loading profile", "url", profileURL)
	if err := page.Navigate(navCtx, profileURL); err != nil {
		return Snapshot{}, fmt.Errorf("navigating to %s: %w", profileURL, err)
	}

	if err := page.WaitForRows(ctx, d.cfg.RowWaitTimeout); err != nil {
		d.logger.Warn("browser: no rows appeared, continuing with what rendered",
			"timeout", d.cfg.RowWaitTimeout, "error", err)
	}

	state, err := d.reveal(ctx, page)
	if err != nil {
		return Snapshot{}, err
	}
	d.logger.Info("browser: listing expanded", "rows", state.Current, "reveals", state.Attempts)

	rows, err := page.Rows(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshotting rows: %w", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		d.logger.Warn("browser: serializing page", "error", err)
	}
	return Snapshot{Rows: rows, HTML: html}, nil
}

func (d *Driver) reveal(ctx context.Context, page Page) (RevealState, error) {
	var state RevealState
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		count, err := page.CountRows(ctx)
		if err != nil {
			d.logger.Warn("browser: counting rows", "error", err)
			return state, nil
		}

		control, found := page.FindReveal(ctx, RevealSelectors)
		var action RevealAction
		state, action = Advance(state, count, found, d.cfg.MaxRevealAttempts)
		d.logger.Debug("browser: reveal step",
			"rows", count, "attempt", state.Attempts, "action", action.String())

		switch action {
		case RevealStop:
			if state.Attempts >= d.cfg.MaxRevealAttempts && state.Stalls == 0 {
				d.logger.Warn("browser: reveal limit reached, listing may be incomplete",
					"attempts", state.Attempts, "rows", count)
			}
			return state, nil
		case RevealClick:
			if err := control.Click(ctx); err != nil {
				d.logger.Warn("browser: clicking reveal control", "selector", control.Selector(), "error", err)
			}
			if err := d.sleep(ctx, d.cfg.ClickSettle); err != nil {
				return state, err
			}
		case RevealScroll:
			if err := page.ScrollToBottom(ctx); err != nil {
				d.logger.Warn("browser: scrolling", "error", err)
			}
			if err := d.sleep(ctx, d.cfg.ScrollSettle); err != nil {
				return state, err
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
