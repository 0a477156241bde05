// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package network builds the citation graph around the lab's publications:
// the works each publication references (from CrossRef) and the works that
// cite it (from the OpenCitations COCI index). The graph is written as
// network.json for the website's visualization.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/internal/httputil"
	"github.com/pdiddy/pubsync/internal/reconcile"
	"github.com/pdiddy/pubsync/pkg/types"
)

// Service endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	crossrefBase = "https://api.crossref.org/works"
	cociBase     = "https://opencitations.net/index/coci/api/v1"
)

// Node types.
const (
	NodeOwn       = "own"
	NodeReference = "reference"
	NodeCitedBy   = "citedBy"
)

// Link relations.
const (
	RelationReference = "reference"
	RelationCitedBy   = "citedBy"
)

// DefaultMaxExternalMetadata caps how many citing works get a CrossRef
// lookup for their title and year.
const DefaultMaxExternalMetadata = 60

// Node is a work in the graph, keyed by DOI.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Year  int    `json:"year,omitempty"`
}

// Link is a directed citation edge.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Network is the document written to network.json.
type Network struct {
	Nodes       []Node `json:"nodes"`
	Links       []Link `json:"links"`
	GeneratedAt string `json:"generatedAt"`
}

// LoadDOIs returns the sorted, de-duplicated DOIs of ds, lowercased.
func LoadDOIs(ds *types.Dataset) []string {
	seen := make(map[string]bool)
	var dois []string
	for _, p := range ds.Publications {
		doi := reconcile.NormalizeDOI(p.DOI)
		if doi == "" || seen[doi] {
			continue
		}
		seen[doi] = true
		dois = append(dois, doi)
	}
	sort.Strings(dois)
	return dois
}

// Builder queries CrossRef and COCI one request at a time.
type Builder struct {
	client      *http.Client
	pacer       *httputil.Pacer
	logger      *slog.Logger
	userAgent   string
	mailto      string
	maxExternal int
	now         func() time.Time

	// Out receives one progress line per DOI. Nil discards.
	Out io.Writer
}

// NewBuilder returns a Builder configured from cfg.
func NewBuilder(cfg types.NetworkConfig, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Builder{
		client:      &http.Client{Timeout: timeout},
		pacer:       httputil.NewPacer(cfg.Delay),
		logger:      logger,
		userAgent:   cfg.UserAgent,
		mailto:      cfg.Mailto,
		maxExternal: DefaultMaxExternalMetadata,
		now:         time.Now,
	}
}

// graph accumulates nodes and links in insertion order.
type graph struct {
	nodes map[string]*Node
	order []string
	links []Link
	seen  map[Link]bool
}

func newGraph() *graph {
	return &graph{nodes: make(map[string]*Node), seen: make(map[Link]bool)}
}

func (g *graph) addNode(doi, typ string) *Node {
	if n, ok := g.nodes[doi]; ok {
		return n
	}
	n := &Node{ID: doi, Label: doi, Type: typ}
	g.nodes[doi] = n
	g.order = append(g.order, doi)
	return n
}

func (g *graph) addLink(l Link) {
	if g.seen[l] {
		return
	}
	g.seen[l] = true
	g.links = append(g.links, l)
}

// Build assembles the graph for dois. Lookup failures leave the affected
// DOI without references or citations; only cancellation is an error.
func (b *Builder) Build(ctx context.Context, dois []string) (*Network, error) {
	out := b.Out
	if out == nil {
		out = io.Discard
	}

	g := newGraph()
	for _, doi := range dois {
		g.addNode(doi, NodeOwn)
	}

	enriched := make(map[string]bool)
	for i, doi := range dois {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("network build interrupted: %w", err)
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(dois), doi)

		if w, ok := b.lookupWork(ctx, doi); ok {
			w.apply(g.nodes[doi])
			for _, ref := range w.references {
				g.addNode(ref, NodeReference)
				g.addLink(Link{Source: doi, Target: ref, Relation: RelationReference})
			}
		}

		for _, citing := range b.citations(ctx, doi) {
			g.addNode(citing, NodeCitedBy)
			g.addLink(Link{Source: citing, Target: doi, Relation: RelationCitedBy})

			if len(enriched) >= b.maxExternal || enriched[citing] {
				continue
			}
			if w, ok := b.lookupWork(ctx, citing); ok {
				w.apply(g.nodes[citing])
				enriched[citing] = true
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("network build interrupted: %w", err)
	}

	net := &Network{
		Nodes:       make([]Node, 0, len(g.order)),
		Links:       g.links,
		GeneratedAt: types.Timestamp(b.now()),
	}
	if net.Links == nil {
		net.Links = []Link{}
	}
	for _, id := range g.order {
		net.Nodes = append(net.Nodes, *g.nodes[id])
	}
	fmt.Fprintf(out, "Total nodes: %d\nTotal links: %d\n", len(net.Nodes), len(net.Links))
	return net, nil
}

// Write saves net to path atomically.
func Write(net *Network, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(net); err != nil {
		return fmt.Errorf("encoding network: %w", err)
	}
	return dataset.WriteFileAtomic(path, buf.Bytes())
}

// escapeDOI escapes a DOI for use in a URL path, keeping its slashes.
func escapeDOI(doi string) string {
	return strings.ReplaceAll(url.PathEscape(doi), "%2F", "/")
}

// getJSON fetches u into v. It returns false on any failure, after
// logging it.
func (b *Builder) getJSON(ctx context.Context, u string, v any) bool {
	if err := b.pacer.Wait(ctx); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		b.logger.Warn("network: bad request URL", "url", u, "error", err)
		return false
	}
	ua := b.userAgent
	if b.mailto != "" {
		ua += " (mailto:" + b.mailto + ")"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, b.client, req, 0)
	if err != nil {
		b.logger.Warn("network: request failed", "url", u, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Debug("network: non-OK response", "url", u, "status", resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		b.logger.Warn("network: malformed response", "url", u, "error", err)
		return false
	}
	return true
}
