// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
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

var enrichNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const coreResponse = `{
  "hitCount": 1,
  "resultList": {"result": [{
    "id": "31000001",
    "source": "MED",
    "pmid": "31000001",
    "doi": "10.1038/s41592-019-0001-x",
    "title": "Deep learning for protein folding.",
    "authorString": "Smith J, Doe A, Roe B.",
    "journalInfo": {"volume": "16", "issue": "3", "journal": {"title": "Nature methods"}},
    "pubYear": "2019",
    "pageInfo": "45-50",
    "abstractText": "<h4>Background</h4><p>We study  folding.</p><p>It works<br/>well.</p>",
    "keywordList": {"keyword": ["protein folding", " deep learning "]},
    "fullTextUrlList": {"fullTextUrl": [
      {"availability": "Open access", "documentStyle": "html", "site": "Europe_PMC", "url": "https://europepmc.org/articles/PMC1"},
      {"availability": "Open access", "documentStyle": "pdf", "site": "Europe_PMC", "url": "https://europepmc.org/articles/PMC1?pdf=render"}
    ]}
  }]}
}`

func newTestEnricher(t *testing.T, handler http.HandlerFunc) *Enricher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := europePMCSearchBase
	europePMCSearchBase = srv.URL
	t.Cleanup(func() { europePMCSearchBase = orig })

	cfg := types.DefaultSyncConfig().Enrich
	cfg.Delay = 0
	e := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return enrichNow }
	return e
}

// --- query building ---

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		c    types.CandidateRecord
		want string
	}{
		{
			name: "doi",
			c:    types.CandidateRecord{Title: "Anything", DOI: "10.1/abc"},
			want: `DOI:"10.1/abc"`,
		},
		{
			name: "title and surname",
			c:    types.CandidateRecord{Title: "Deep learning for protein folding at scale", Authors: []string{"J Smith", "A Doe"}},
			want: `TITLE:"Deep learning for protein folding" AND AUTHOR:"Smith"`,
		},
		{
			name: "title only",
			c:    types.CandidateRecord{Title: `A "quoted" title`},
			want: `TITLE:"A quoted title"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.c))
		})
	}
}

// --- Enrich ---

func TestEnrich_FullResult(t *testing.T) {
	e := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, `DOI:"10.1038/s41592-019-0001-x"`, q.Get("query"))
		assert.Equal(t, "core", q.Get("resultType"))
		assert.Equal(t, "1", q.Get("pageSize"))
		assert.Equal(t, "json", q.Get("format"))
		w.Write([]byte(coreResponse))
	})

	got := e.Enrich(context.Background(), types.CandidateRecord{
		Title: "Deep learning for protein folding", DOI: "10.1038/s41592-019-0001-x",
	})
	assert.Equal(t, "**Background**\n\nWe study folding.\n\nIt works\nwell.", got.Abstract)
	assert.Equal(t, []string{"Smith J", "Doe A", "Roe B"}, got.Authors)
	assert.Equal(t, []string{"protein folding", "deep learning"}, got.Keywords)
	assert.Equal(t, "31000001", got.PMID)
	assert.Equal(t, "Nature methods", got.Journal)
	assert.Equal(t, "16", got.Volume)
	assert.Equal(t, "45-50", got.Pages)
	assert.Equal(t, 2019, got.Year)
	assert.Equal(t, "https://europepmc.org/articles/PMC1?pdf=render", got.PDFURL)
}

func TestEnrich_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"resultList": [`))
		}},
		{"no results", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"hitCount":0,"resultList":{"result":[]}}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnricher(t, tt.handler)
			got := e.Enrich(context.Background(), types.CandidateRecord{Title: "Some title here"})
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestEnrich_RejectsImplausibleYearAndMarkers(t *testing.T) {
	e := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList":{"result":[{"pubYear":"2031","authorString":"Smith J, et al."}]}}`))
	})

	got := e.Enrich(context.Background(), types.CandidateRecord{Title: "Some title here"})
	assert.Equal(t, 0, got.Year)
	assert.Equal(t, []string{"Smith J"}, got.Authors)
}

// --- BuildPublication ---

func TestBuildPublication_EnrichmentWins(t *testing.T) {
	c := types.CandidateRecord{
		Title: "Deep learning for protein folding", Authors: []string{"J Smith"}, Year: 2024,
		Journal: "Nature Methods", Citations: 37, SourceID: "USER:aaa",
		ProfileURL: "https://scholar.google.com/citations?citation_for_view=USER:aaa",
	}
	enr := types.EnrichmentResult{
		Abstract: "Text", Authors: []string{"Smith J", "Doe A"}, Year: 2019,
		PMID: "31000001", DOI: "10.1/x", Journal: "Nature methods",
	}

	p := BuildPublication(c, enr, enrichNow)
	assert.Equal(t, "pub-2019-deep-learning-for-protein-folding", p.ID)
	assert.Equal(t, []string{"Smith J", "Doe A"}, p.Authors)
	assert.Equal(t, 2019, p.Year)
	assert.Equal(t, "Nature methods", p.Journal)
	assert.Equal(t, "10.1/x", p.DOI)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/31000001", p.PubMedURL)
	assert.Equal(t, "USER:aaa", p.ExternalID)
	assert.Equal(t, 37, p.Citations)
	assert.Equal(t, types.SourceHybrid, p.Source)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", p.LastUpdated)
}

func TestBuildPublication_CandidateOnly(t *testing.T) {
	c := types.CandidateRecord{Title: "Widget assembly at scale", Year: 2015, Journal: "Science", SourceID: "s"}

	p := BuildPublication(c, types.EnrichmentResult{}, enrichNow)
	assert.Equal(t, types.SourceScholar, p.Source)
	assert.Equal(t, "Science", p.Journal)
	assert.Empty(t, p.PubMedURL)
	assert.NotNil(t, p.Authors)
}

// --- Batch ---

func TestBatch(t *testing.T) {
	calls := 0
	e := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(coreResponse))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	var progress bytes.Buffer
	e.Out = &progress

	res, err := e.Batch(context.Background(), []types.CandidateRecord{
		{Title: "Deep learning for protein folding", Year: 2019, SourceID: "a"},
		{Title: "Widget assembly at scale", Year: 2015, SourceID: "b"},
	})
	require.NoError(t, err)
	require.Len(t, res.Publications, 2)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.WithAbstract)
	assert.Equal(t, types.SourceHybrid, res.Publications[0].Source)
	assert.Equal(t, types.SourceScholar, res.Publications[1].Source)
	assert.Equal(t, 2, calls)
	assert.Contains(t, progress.String(), "[1/2] abstract")
	assert.Contains(t, progress.String(), "[2/2] no match")
}

func TestBatch_Cancelled(t *testing.T) {
	e := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList":{"result":[]}}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Batch(ctx, []types.CandidateRecord{{Title: "One title"}, {Title: "Two title"}})
	assert.ErrorIs(t, err, context.Canceled)
}

// --- abstract cleaning ---

func TestCleanAbstract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Just text.", "Just text."},
		{"heading and paragraphs", "<h3>Methods</h3><p>One.</p><p>Two.</p>", "**Methods**\n\nOne.\n\nTwo."},
		{"line break", "First line<br>second line", "First line\nsecond line"},
		{"inline markup", "CO<sub>2</sub> and <i>E. coli</i>", "CO2 and E. coli"},
		{"entities", "<p>A &amp; B &lt; C</p>", "A & B < C"},
		{"scripts removed", "<p>Safe</p><script>alert(1)</script>", "Safe"},
		{"empty heading dropped", "<h4> </h4><p>Body</p>", "Body"},
		{"collapse breaks", "<p>A</p>\n\n\n\n<p>B</p>", "A\n\nB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanAbstract(tt.in))
		})
	}
}
