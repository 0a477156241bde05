//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Catalog namespaces the catalog targets.
type Catalog mg.Namespace

// Index rebuilds the SQLite catalog from the dataset.
func (Catalog) Index() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "catalog", "index")
}

// Export writes the catalog to catalog/export.yaml.
func (Catalog) Export() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "catalog", "export")
}

// Network builds public/data/network.json from the dataset's DOIs.
func Network() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "network")
}
