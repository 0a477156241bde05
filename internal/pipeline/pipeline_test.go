// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubsync/internal/browser"
	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/internal/reconcile"
	"github.com/pdiddy/pubsync/internal/scrape"
	"github.com/pdiddy/pubsync/pkg/types"
)

var runAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const staticPage = `<html><body><table><tbody>
<tr class="gsc_a_tr">
  <td class="gsc_a_t">
    <a class="gsc_a_at" href="/citations?view_op=view_citation&amp;user=USER&amp;citation_for_view=USER:zzz">Static fetch publication title</a>
    <div class="gs_gray">A Author, B Author</div>
    <div class="gs_gray">Science, 2017</div>
  </td>
  <td class="gsc_a_c"><a class="gsc_a_ac gs_ibl">12</a></td>
  <td class="gsc_a_y"><span class="gsc_a_h gsc_a_hc gs_ibl">2017</span></td>
</tr>
</tbody></table></body></html>`

// --- fakes ---

type fakeRows struct {
	snap  browser.Snapshot
	err   error
	calls int
}

func (f *fakeRows) LoadAllRows(ctx context.Context, profileURL string) (browser.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.html, f.err
}

// fakeEnricher attaches an abstract to the first candidate only.
type fakeEnricher struct{}

func (fakeEnricher) Batch(ctx context.Context, cands []types.CandidateRecord) (enrich.BatchResult, error) {
	res := enrich.BatchResult{}
	for i, c := range cands {
		var e types.EnrichmentResult
		if i == 0 {
			e.Abstract = "An abstract."
			res.Matched++
			res.WithAbstract++
		}
		res.Publications = append(res.Publications, enrich.BuildPublication(c, e, runAt))
	}
	return res, nil
}

func row(index int, title, sourceID string, grays []string, citations, year string) types.RawListingRow {
	return types.RawListingRow{
		Index: index,
		Cells: []types.Cell{
			{Text: title, Class: "gsc_a_t"},
			{Text: citations, Class: "gsc_a_c"},
			{Text: year, Class: "gsc_a_y"},
		},
		GrayTexts: grays,
		Links: []types.Link{
			{Text: title, Href: "/citations?view_op=view_citation&citation_for_view=" + sourceID, Class: "gsc_a_at"},
			{Text: citations, Class: "gsc_a_ac gs_ibl"},
		},
	}
}

func browserRows() *fakeRows {
	return &fakeRows{snap: browser.Snapshot{Rows: []types.RawListingRow{
		row(0, "Deep learning for protein folding", "USER:aaa",
			[]string{"J Smith, A Doe", "Nature Methods 12 (3), 45-50, 2019"}, "37", "2019"),
		row(1, "Widget assembly at industrial scale", "USER:bbb",
			[]string{"K Lee", "Journal of Widgets, 2021"}, "4", "2021"),
	}}}
}

func testConfig(t *testing.T) types.SyncConfig {
	t.Helper()
	cfg := types.DefaultSyncConfig()
	cfg.Extract.UserID = "USER"
	cfg.OutputPath = filepath.Join(t.TempDir(), "data", "publications.json")
	return cfg
}

func testDeps(rows RowSource, fetcher HTMLFetcher, e Enricher) (Deps, *bytes.Buffer) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return runAt }
	cfg := types.DefaultSyncConfig().Extract
	cfg.UserID = "USER"
	return Deps{
		Rows:      rows,
		Fetcher:   fetcher,
		Enricher:  e,
		Extractor: scrape.New(cfg, scrape.WithLogger(logger), scrape.WithClock(now)),
		Logger:    logger,
		Now:       now,
		Out:       &out,
	}, &out
}

func seed(t *testing.T, path string, pubs ...types.Publication) {
	t.Helper()
	ds := &types.Dataset{
		Publications: pubs,
		Metadata: types.DatasetMetadata{
			LastGoogleScholarSync: "2023-01-01T00:00:00.000Z",
			LastEuropePMCSync:     "2023-01-02T00:00:00.000Z",
		},
	}
	require.NoError(t, dataset.Write(ds, path))
}

// --- browser path ---

func TestRun_BrowserPath(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg.OutputPath,
		types.Publication{ID: "pub-2010-curated", Title: "Curated", Authors: []string{}, Year: 2010, Source: types.SourceManual},
		types.Publication{ID: "pub-2019-keep-me", Title: "Old title", Authors: []string{}, Year: 2019,
			ExternalID: "USER:aaa", Tags: []string{"ml"}, Source: types.SourceScholar},
	)
	deps, out := testDeps(browserRows(), nil, fakeEnricher{})

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "browser", report.Via)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.WithAbstract)
	assert.True(t, report.Written)
	assert.Equal(t, 1, report.Merge.Updated)
	assert.Equal(t, 1, report.Merge.Added)
	assert.Equal(t, 1, report.Merge.Preserved)

	ds, err := dataset.Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, ds.Publications, 3)
	assert.Equal(t, 3, ds.TotalCount)
	assert.Equal(t, "pub-2021-widget-assembly-at-industrial-scale", ds.Publications[0].ID)

	updated := ds.Publications[1]
	assert.Equal(t, "pub-2019-keep-me", updated.ID)
	assert.Equal(t, "Deep learning for protein folding", updated.Title)
	assert.Equal(t, []string{"ml"}, updated.Tags)
	assert.Equal(t, types.SourceHybrid, updated.Source)
	assert.Equal(t, "Nature Methods", updated.Journal)
	assert.Equal(t, 37, updated.Citations)

	assert.Equal(t, types.SourceManual, ds.Publications[2].Source)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", ds.LastSync)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", ds.Metadata.LastGoogleScholarSync)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", ds.Metadata.LastEuropePMCSync)
	assert.Equal(t, cfg.ProfileURL, ds.Metadata.GoogleScholarProfile)
	assert.Contains(t, out.String(), "Extracted 2 publications via browser")
	assert.Contains(t, out.String(), "Wrote ")
}

// --- fallback ---

func TestRun_FallsBackToHTTP(t *testing.T) {
	cfg := testConfig(t)
	rows := &fakeRows{err: errors.New("chrome not found")}
	fetcher := &fakeFetcher{html: staticPage}
	deps, _ := testDeps(rows, fetcher, nil)

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "http", report.Via)
	assert.Equal(t, 1, rows.calls)
	assert.Equal(t, 1, fetcher.calls)

	ds, err := dataset.Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, ds.Publications, 1)
	p := ds.Publications[0]
	assert.Equal(t, "Static fetch publication title", p.Title)
	assert.Equal(t, 2017, p.Year)
	assert.Equal(t, 12, p.Citations)
	assert.Equal(t, types.SourceScholar, p.Source)
	assert.Empty(t, ds.Metadata.LastEuropePMCSync)
}

func TestRun_BrowserDisabledSkipsBrowser(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Disabled = true
	rows := browserRows()
	deps, _ := testDeps(rows, &fakeFetcher{html: staticPage}, nil)

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "http", report.Via)
	assert.Zero(t, rows.calls)
}

func TestRun_BothSourcesFail(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg.OutputPath, types.Publication{ID: "pub-2010-x", Title: "X", Authors: []string{}, Year: 2010, Source: types.SourceScholar})
	before, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	deps, _ := testDeps(&fakeRows{err: errors.New("launch failed")}, &fakeFetcher{err: errors.New("HTTP 429")}, nil)
	_, err = Run(context.Background(), cfg, deps)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSource)

	after, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// --- write gating ---

func TestRun_DryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	deps, out := testDeps(browserRows(), nil, fakeEnricher{})

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.False(t, report.Written)
	require.NotNil(t, report.Dataset)
	assert.Len(t, report.Dataset.Publications, 2)
	assert.NoFileExists(t, cfg.OutputPath)
	assert.Contains(t, out.String(), "Dry run")
}

func TestRun_NoCandidatesKeepsPriorSyncTimes(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg.OutputPath,
		types.Publication{ID: "pub-2012-a", Title: "A", Authors: []string{}, Year: 2012, Source: types.SourceScholar},
		types.Publication{ID: "pub-2020-b", Title: "B", Authors: []string{}, Year: 2020, Source: types.SourceHybrid},
	)
	deps, _ := testDeps(&fakeRows{}, nil, fakeEnricher{})

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.True(t, report.Written)

	ds, err := dataset.Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, ds.Publications, 2)
	assert.Equal(t, "pub-2020-b", ds.Publications[0].ID)
	assert.Equal(t, "2023-01-01T00:00:00.000Z", ds.Metadata.LastGoogleScholarSync)
	assert.Equal(t, "2023-01-02T00:00:00.000Z", ds.Metadata.LastEuropePMCSync)
}

func TestRun_MalformedExistingAndNothingFresh(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.OutputPath, []byte("{not json"), 0o644))
	deps, _ := testDeps(&fakeRows{}, nil, nil)

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.False(t, report.Written)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestRun_MalformedExistingIsBackedUpBeforeWrite(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.OutputPath, []byte("{not json"), 0o644))
	deps, _ := testDeps(browserRows(), nil, nil)

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	require.True(t, report.Written)
	require.NotEmpty(t, report.Backup)

	backup, err := os.ReadFile(report.Backup)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))

	ds, err := dataset.Read(cfg.OutputPath)
	require.NoError(t, err)
	assert.NotEmpty(t, ds.Publications)
}

func TestRun_ManualOnlyMatchIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg.OutputPath,
		types.Publication{ID: "pub-2019-manual", Title: "Deep learning for protein folding", Authors: []string{}, Year: 2019, Source: types.SourceManual},
	)
	rows := &fakeRows{snap: browser.Snapshot{Rows: browserRows().snap.Rows[:1]}}
	deps, _ := testDeps(rows, nil, nil)

	report, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merge.Skipped)
	require.Len(t, report.Merge.Skips, 1)
	assert.Equal(t, reconcile.SkipManualMatch, report.Merge.Skips[0].Reason)
	assert.Len(t, report.Dataset.Publications, 1)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	deps, _ := testDeps(browserRows(), nil, nil)

	_, err := Run(ctx, cfg, deps)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, cfg.OutputPath)
}
