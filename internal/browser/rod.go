// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/pdiddy/pubsync/pkg/types"
)

// snapshotJS serializes every listing row in the page. It runs in the
// browser, so the result reflects the live DOM after all reveals.
const snapshotJS = `(sel) => JSON.stringify(Array.from(document.querySelectorAll(sel)).map((row, index) => ({
	index: index,
	cells: Array.from(row.querySelectorAll('td')).map(td => ({
		text: (td.textContent || '').trim(),
		class: td.className || '',
		html: td.innerHTML,
	})),
	grayTexts: Array.from(row.querySelectorAll('div.gs_gray')).map(d => (d.textContent || '').trim()),
	links: Array.from(row.querySelectorAll('a')).map(a => ({
		text: (a.textContent || '').trim(),
		href: a.getAttribute('href') || '',
		class: a.className || '',
		onclick: a.getAttribute('onclick') || '',
	})),
	html: row.innerHTML,
	text: (row.textContent || '').trim(),
})))`

const (
	countJS  = `(sel) => document.querySelectorAll(sel).length`
	scrollJS = `() => window.scrollTo(0, document.body.scrollHeight)`
)

// Launcher owns one Chrome process (or a connection to a remote one) and
// hands out stealth pages. It is safe to Close more than once.
type Launcher struct {
	cfg    types.BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewLauncher returns a Launcher. Chrome is started lazily by NewPage.
func NewLauncher(cfg types.BrowserConfig, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

func (l *Launcher) connect() (*rod.Browser, error) {
	if l.browser != nil {
		return l.browser, nil
	}

	wsURL := l.cfg.RemoteURL
	if wsURL != "" {
		l.logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		lnch := launcher.New().
			Headless(true).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		wsURL = u
		l.lnch = lnch
		l.logger.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l.lnch != nil {
			l.lnch.Cleanup()
			l.lnch = nil
		}
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	l.browser = b
	return b, nil
}

// NewPage opens a stealth page with the configured user agent and a
// desktop viewport.
func (l *Launcher) NewPage(ctx context.Context) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("launcher is closed")
	}

	b, err := l.connect()
	if err != nil {
		return nil, err
	}
	p, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}

	ua := l.cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		l.logger.Warn("browser: setting user agent", "error", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1920, Height: 1080, DeviceScaleFactor: 1,
	}); err != nil {
		l.logger.Warn("browser: setting viewport", "error", err)
	}
	return &rodPage{page: p}, nil
}

// Close shuts the browser down and removes the launched process.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var err error
	if l.browser != nil {
		err = l.browser.Close()
		l.browser = nil
	}
	if l.lnch != nil {
		l.lnch.Cleanup()
		l.lnch = nil
	}
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) WaitForRows(ctx context.Context, timeout time.Duration) error {
	pg := p.page.Context(ctx)
	if timeout > 0 {
		pg = pg.Timeout(timeout)
	}
	if _, err := pg.Element(RowSelector); err != nil {
		return fmt.Errorf("%w: %v", ErrNoRows, err)
	}
	return nil
}

func (p *rodPage) CountRows(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(countJS, RowSelector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *rodPage) FindReveal(ctx context.Context, selectors []string) (Control, bool) {
	pg := p.page.Context(ctx)
	for _, sel := range selectors {
		els, err := pg.Elements(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			if disabled, err := el.Attribute("disabled"); err == nil && disabled != nil {
				continue
			}
			return &rodControl{el: el, selector: sel}, true
		}
	}
	return nil, false
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollJS)
	return err
}

func (p *rodPage) Rows(ctx context.Context) ([]types.RawListingRow, error) {
	res, err := p.page.Context(ctx).Eval(snapshotJS, RowSelector)
	if err != nil {
		return nil, err
	}
	var rows []types.RawListingRow
	if err := json.Unmarshal([]byte(res.Value.Str()), &rows); err != nil {
		return nil, fmt.Errorf("decoding row snapshot: %w", err)
	}
	return rows, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodControl struct {
	el       *rod.Element
	selector string
}

func (c *rodControl) Selector() string { return c.selector }

func (c *rodControl) Click(ctx context.Context) error {
	return c.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
