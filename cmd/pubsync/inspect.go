// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/browser"
	"github.com/pdiddy/pubsync/internal/scrape"
	"github.com/pdiddy/pubsync/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump the structure of every listing row as YAML",
	Long: `Inspect loads the profile the same way sync does and prints, for each
row, the raw cells, gray texts, and links next to the fields the extractor
parsed from them. Each parsed field names the rule that produced it, which
shows where a layout change broke extraction.

With --html-file, a saved copy of the page is parsed instead and only the
extracted records are printed.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

type inspectedRow struct {
	Row    types.RawListingRow    `yaml:"row"`
	Parsed *types.CandidateRecord `yaml:"parsed,omitempty"`
}

type inspection struct {
	URL       string                  `yaml:"url"`
	Source    string                  `yaml:"source"`
	RowCount  int                     `yaml:"row_count"`
	Rows      []inspectedRow          `yaml:"rows,omitempty"`
	Extracted []types.CandidateRecord `yaml:"extracted"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := syncConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()
	extractor := scrape.New(cfg.Extract, scrape.WithLogger(logger))

	report := inspection{URL: cfg.ProfileURL}
	var in scrape.Input

	htmlFile, _ := cmd.Flags().GetString("html-file")
	switch {
	case htmlFile != "":
		data, err := os.ReadFile(htmlFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", htmlFile, err)
		}
		report.URL = htmlFile
		report.Source = "file"
		in.HTML = string(data)

	case cfg.Browser.Disabled:
		html, err := browser.NewFetcher(fetchConfig(cfg.Browser)).FetchHTML(cmd.Context(), cfg.ProfileURL)
		if err != nil {
			return err
		}
		report.Source = "http"
		in.HTML = html

	default:
		launcher := browser.NewLauncher(cfg.Browser, logger)
		defer launcher.Close()
		snap, err := browser.NewDriver(launcher, cfg.Browser, logger).LoadAllRows(cmd.Context(), cfg.ProfileURL)
		if err != nil {
			return err
		}
		report.Source = "browser"
		in = scrape.Input{Rows: snap.Rows, HTML: snap.HTML}
		for _, row := range snap.Rows {
			ir := inspectedRow{Row: row}
			if rec, ok := extractor.ParseRow(row); ok {
				ir.Parsed = &rec
			}
			report.Rows = append(report.Rows, ir)
		}
	}

	report.RowCount = len(in.Rows)
	report.Extracted = extractor.Extract(in)

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

func init() {
	inspectCmd.Flags().String("profile-url", "", "profile listing URL")
	inspectCmd.Flags().Bool("no-browser", false, "fetch the static page instead of using a browser")
	inspectCmd.Flags().Int("max-reveal", 0, "maximum \"show more\" attempts (0 = config default)")
	inspectCmd.Flags().String("html-file", "", "parse a saved page instead of loading the profile")

	rootCmd.AddCommand(inspectCmd)
}
