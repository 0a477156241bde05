// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads and writes the publications document the website
// serves. Writes are atomic: readers see either the previous file or the
// new one, never a partial write.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/pubsync/pkg/types"
)

// Read loads the dataset at path. A missing file yields an empty dataset.
func Read(path string) (*types.Dataset, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &types.Dataset{Publications: []types.Publication{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var ds types.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if ds.Publications == nil {
		ds.Publications = []types.Publication{}
	}
	return &ds, nil
}

// Write persists ds to path, creating parent directories as needed. It
// sets TotalCount from the publication list.
func Write(ds *types.Dataset, path string) error {
	if ds.Publications == nil {
		ds.Publications = []types.Publication{}
	}
	ds.TotalCount = len(ds.Publications)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteFileAtomic writes data to a temp file beside path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Summary renders the per-provenance counts, e.g.
// "12 publications (google_scholar=7, hybrid=4, manual=1)".
func Summary(ds *types.Dataset) string {
	counts := ds.CountBySource()
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)

	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("%s=%d", s, counts[types.Source(s)])
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d publications", len(ds.Publications))
	}
	return fmt.Sprintf("%d publications (%s)", len(ds.Publications), strings.Join(parts, ", "))
}

// Backup renames the file at path to "<path>.unreadable-<UTC stamp>" and
// returns the new name. It is used before replacing a dataset that could
// not be parsed, so curated records in it are not lost.
func Backup(path string, now time.Time) (string, error) {
	dest := path + ".unreadable-" + now.UTC().Format("20060102T150405Z")
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	return dest, nil
}
