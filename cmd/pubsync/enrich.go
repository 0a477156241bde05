// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up one publication in Europe PMC",
	Long: `Enrich runs a single Europe PMC lookup, by DOI or by title and first
author, and prints the enrichment result as JSON. It uses the same query
and cleaning rules as sync.`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	doi, _ := cmd.Flags().GetString("doi")
	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")
	if doi == "" && title == "" {
		return fmt.Errorf("--doi or --title is required")
	}

	cfg, err := loadSyncConfig(cmd)
	if err != nil {
		return err
	}

	c := types.CandidateRecord{Title: title, DOI: doi}
	if author != "" {
		c.Authors = []string{author}
	}

	e := enrich.New(cfg.Enrich, slog.Default())
	slog.Debug("enrich: query", "query", enrich.BuildQuery(c))
	res := e.Enrich(cmd.Context(), c)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}

func init() {
	enrichCmd.Flags().String("doi", "", "DOI to look up")
	enrichCmd.Flags().String("title", "", "title to look up when no DOI is given")
	enrichCmd.Flags().String("author", "", "author name to narrow a title lookup")

	rootCmd.AddCommand(enrichCmd)
}
