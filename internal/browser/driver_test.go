// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubsync/pkg/types"
)

// --- Advance ---

func TestAdvance(t *testing.T) {
	tests := []struct {
		name       string
		state      RevealState
		observed   int
		found      bool
		wantAction RevealAction
		wantState  RevealState
	}{
		{
			name:       "first observation clicks",
			observed:   20,
			found:      true,
			wantAction: RevealClick,
			wantState:  RevealState{Previous: 0, Current: 20, Attempts: 1},
		},
		{
			name:       "first observation without control scrolls",
			observed:   20,
			wantAction: RevealScroll,
			wantState:  RevealState{Previous: 0, Current: 20, Attempts: 1},
		},
		{
			name:       "growth continues",
			state:      RevealState{Previous: 20, Current: 40, Attempts: 2},
			observed:   60,
			found:      true,
			wantAction: RevealClick,
			wantState:  RevealState{Previous: 40, Current: 60, Attempts: 3},
		},
		{
			name:       "unchanged count stops",
			state:      RevealState{Previous: 20, Current: 40, Attempts: 2},
			observed:   40,
			found:      true,
			wantAction: RevealStop,
			wantState:  RevealState{Previous: 40, Current: 40, Attempts: 2, Stalls: 1},
		},
		{
			name:       "zero rows after one scroll stops",
			state:      RevealState{Attempts: 1},
			observed:   0,
			wantAction: RevealStop,
			wantState:  RevealState{Attempts: 1, Stalls: 1},
		},
		{
			name:       "attempt cap stops despite growth",
			state:      RevealState{Previous: 380, Current: 400, Attempts: 20},
			observed:   420,
			found:      true,
			wantAction: RevealStop,
			wantState:  RevealState{Previous: 400, Current: 420, Attempts: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, action := Advance(tt.state, tt.observed, tt.found, 20)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantState, got)
		})
	}
}

func TestAdvance_AlwaysTerminates(t *testing.T) {
	var state RevealState
	action := RevealClick
	steps := 0
	for action != RevealStop {
		steps++
		require.Less(t, steps, 100, "loop did not terminate")
		state, action = Advance(state, steps*20, true, 20)
	}
	assert.Equal(t, 20, state.Attempts)
}

// --- Driver ---

type fakeControl struct {
	page *fakePage
}

func (c *fakeControl) Selector() string { return "button#gsc_bpf_more" }

func (c *fakeControl) Click(context.Context) error {
	c.page.clicks++
	return nil
}

type fakePage struct {
	counts      []int
	countCalls  int
	hasControl  bool
	navErr      error
	waitErr     error
	rows        []types.RawListingRow
	html        string
	clicks      int
	scrolls     int
	closed      bool
	navigatedTo string
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigatedTo = url
	return p.navErr
}

func (p *fakePage) WaitForRows(context.Context, time.Duration) error { return p.waitErr }

func (p *fakePage) CountRows(context.Context) (int, error) {
	i := p.countCalls
	p.countCalls++
	if i >= len(p.counts) {
		return p.counts[len(p.counts)-1], nil
	}
	return p.counts[i], nil
}

func (p *fakePage) FindReveal(context.Context, []string) (Control, bool) {
	if !p.hasControl {
		return nil, false
	}
	return &fakeControl{page: p}, true
}

func (p *fakePage) ScrollToBottom(context.Context) error {
	p.scrolls++
	return nil
}

func (p *fakePage) Rows(context.Context) ([]types.RawListingRow, error) { return p.rows, nil }

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeOpener struct {
	page *fakePage
	err  error
}

func (o *fakeOpener) NewPage(context.Context) (Page, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.page, nil
}

func newTestDriver(page *fakePage, maxAttempts int) (*Driver, *[]time.Duration) {
	cfg := types.DefaultSyncConfig().Browser
	cfg.MaxRevealAttempts = maxAttempts
	d := NewDriver(&fakeOpener{page: page}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var sleeps []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		return nil
	}
	return d, &sleeps
}

func TestLoadAllRows_ClicksUntilCountStops(t *testing.T) {
	page := &fakePage{
		counts:     []int{20, 40, 60, 60},
		hasControl: true,
		rows:       []types.RawListingRow{{Index: 0}, {Index: 1}},
		html:       "<html></html>",
	}
	d, sleeps := newTestDriver(page, 20)

	snap, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.NoError(t, err)
	assert.Equal(t, "https://scholar.example/profile", page.navigatedTo)
	assert.Equal(t, 3, page.clicks)
	assert.Equal(t, 0, page.scrolls)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, *sleeps)
	assert.Len(t, snap.Rows, 2)
	assert.Equal(t, "<html></html>", snap.HTML)
	assert.True(t, page.closed)
}

func TestLoadAllRows_ScrollsWithoutControl(t *testing.T) {
	page := &fakePage{counts: []int{20, 20}}
	d, sleeps := newTestDriver(page, 20)

	_, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.NoError(t, err)
	assert.Equal(t, 1, page.scrolls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *sleeps)
}

func TestLoadAllRows_RespectsAttemptCap(t *testing.T) {
	page := &fakePage{counts: []int{20, 40, 60, 80, 100, 120}, hasControl: true}
	d, _ := newTestDriver(page, 3)

	_, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.NoError(t, err)
	assert.Equal(t, 3, page.clicks)
	assert.Equal(t, 4, page.countCalls)
}

func TestLoadAllRows_RowWaitTimeoutIsSoft(t *testing.T) {
	page := &fakePage{counts: []int{0}, waitErr: ErrNoRows}
	d, _ := newTestDriver(page, 20)

	snap, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.NoError(t, err)
	assert.Empty(t, snap.Rows)
	assert.True(t, page.closed)
}

func TestLoadAllRows_NavigationFailure(t *testing.T) {
	page := &fakePage{counts: []int{0}, navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	d, _ := newTestDriver(page, 20)

	_, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigating")
	assert.True(t, page.closed, "page must be closed on failure")
}

func TestLoadAllRows_OpenFailure(t *testing.T) {
	d := NewDriver(&fakeOpener{err: errors.New("chrome not found")}, types.BrowserConfig{}, nil)

	_, err := d.LoadAllRows(context.Background(), "https://scholar.example/profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestLoadAllRows_Cancelled(t *testing.T) {
	page := &fakePage{counts: []int{20, 40}, hasControl: true}
	d, _ := newTestDriver(page, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.LoadAllRows(ctx, "https://scholar.example/profile")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, page.closed)
}

// --- Fetcher ---

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, types.DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "https://scholar.google.com/", r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		w.Write([]byte(`<table><tr class="gsc_a_tr"></tr></table>`))
	}))
	defer srv.Close()

	f := NewFetcher(types.HTTPConfig{Timeout: 5 * time.Second})
	html, err := f.FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "gsc_a_tr")
}

func TestFetchHTML_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFetcher(types.HTTPConfig{Timeout: 5 * time.Second})
	_, err := f.FetchHTML(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestLauncher_CloseIsIdempotent(t *testing.T) {
	l := NewLauncher(types.BrowserConfig{}, nil)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err := l.NewPage(context.Background())
	assert.Error(t, err)
}
