// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/browser"
	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/internal/pipeline"
	"github.com/pdiddy/pubsync/internal/scrape"
	"github.com/pdiddy/pubsync/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scrape, enrich, and merge publications into the dataset",
	Long: `Sync loads the profile listing in a headless browser, revealing every
row, and extracts one record per publication. When the browser cannot
start or navigate, the static page is fetched over HTTP instead.

Each record is looked up in Europe PMC for an abstract and identifiers,
then merged into the existing dataset: automated entries are updated in
place, manual entries are preserved byte for byte. The dataset is only
replaced when the merge produced publications.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := syncConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()
	out := cmd.OutOrStdout()

	deps := pipeline.Deps{
		Fetcher:   browser.NewFetcher(fetchConfig(cfg.Browser)),
		Extractor: scrape.New(cfg.Extract, scrape.WithLogger(logger)),
		Logger:    logger,
		Out:       out,
	}

	if !cfg.Browser.Disabled {
		launcher := browser.NewLauncher(cfg.Browser, logger)
		defer launcher.Close()
		deps.Rows = browser.NewDriver(launcher, cfg.Browser, logger)
	}
	if !cfg.Enrich.Disabled {
		e := enrich.New(cfg.Enrich, logger)
		e.Out = out
		deps.Enricher = e
	}

	report, err := pipeline.Run(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}

	attrs := []any{
		"via", report.Via,
		"candidates", report.Candidates,
		"matched", report.Matched,
		"abstracts", report.WithAbstract,
		"written", report.Written,
	}
	if report.Dataset != nil {
		attrs = append(attrs, "dataset", dataset.Summary(report.Dataset))
	}
	logger.Info("sync: complete", attrs...)
	return nil
}

// fetchConfig derives the static-fetch HTTP settings from the browser's.
func fetchConfig(b types.BrowserConfig) types.HTTPConfig {
	return types.HTTPConfig{Timeout: b.NavigationTimeout, UserAgent: b.UserAgent}
}

func init() {
	syncCmd.Flags().String("output", "", "dataset file to read and overwrite")
	syncCmd.Flags().String("profile-url", "", "profile listing URL")
	syncCmd.Flags().Bool("dry-run", false, "run every stage but do not write the dataset")
	syncCmd.Flags().Bool("no-browser", false, "skip the browser and fetch the static page")
	syncCmd.Flags().Bool("no-enrich", false, "skip Europe PMC enrichment")
	syncCmd.Flags().Int("max-reveal", 0, "maximum \"show more\" attempts (0 = config default)")

	rootCmd.AddCommand(syncCmd)
}
