// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/pkg/types"
)

// ExportEntry is one publication in an export file.
type ExportEntry struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	Year      int      `json:"year" yaml:"year"`
	Journal   string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	DOI       string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Citations int      `json:"citations" yaml:"citations"`
	Source    string   `json:"source" yaml:"source"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Abstract  string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

const exportLimit = 100000

// ExportYAML writes matching publications to <dir>/export.yaml and
// returns the path. It accepts the same filters as Query.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, "export.yaml")
	return path, dataset.WriteFileAtomic(path, data)
}

// ExportJSON writes matching publications to <dir>/export.json and
// returns the path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, "export.json")
	return path, dataset.WriteFileAtomic(path, data)
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	opts.MaxResults = exportLimit
	results, err := s.Query(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(results))
	for i, r := range results {
		entries[i] = toEntry(r.Publication)
	}
	return entries, nil
}

func toEntry(p types.Publication) ExportEntry {
	return ExportEntry{
		ID:        p.ID,
		Title:     p.Title,
		Authors:   p.Authors,
		Year:      p.Year,
		Journal:   p.Journal,
		DOI:       p.DOI,
		Citations: p.Citations,
		Source:    string(p.Source),
		Tags:      p.Tags,
		Abstract:  p.Abstract,
	}
}
