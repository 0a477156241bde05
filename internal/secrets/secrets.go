// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads contact addresses and credentials from a directory
// of plain-text files. Each file holds one secret: the filename is the key
// and the trimmed contents are the value.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Known keys.
const (
	// CrossRefMailto joins CrossRef's polite pool for the network builder.
	CrossRefMailto = "crossref-mailto"

	// EuropePMCEmail is sent to Europe PMC with enrichment queries.
	EuropePMCEmail = "europepmc-email"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory yields an empty map. Unreadable files are
// logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("secrets: could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Fill sets *dst to secrets[key] when *dst is empty. Explicit
// configuration wins over the secrets directory.
func Fill(dst *string, secrets map[string]string, key string) {
	if *dst == "" {
		*dst = secrets[key]
	}
}
