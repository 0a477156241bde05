// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the local publication catalog (index, query, export)",
	Long: `Catalog keeps a SQLite copy of the dataset with full-text search over
titles, abstracts, authors, journals, and keywords. Use subcommands to
rebuild it from the dataset, query it, or export a filtered subset.`,
}

// --- index subcommand ---

var catalogIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the catalog from the dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		path := datasetPath(cmd)
		ds, err := dataset.Read(path)
		if err != nil {
			return err
		}
		_, err = store.Index(cmd.Context(), ds, cmd.OutOrStdout())
		return err
	},
}

// --- query subcommand ---

var catalogQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the catalog with full-text search and filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.Query(cmd.Context(), queryOptsFromFlags(cmd, args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}

		fmt.Fprintf(out, "%-4s  %-4s  %-60s  %-9s  %s\n", "Rank", "Year", "Title", "Citations", "Source")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for i, r := range results {
			p := r.Publication
			title := p.Title
			if len(title) > 60 {
				title = title[:57] + "..."
			}
			fmt.Fprintf(out, "%-4d  %-4d  %-60s  %-9d  %s\n", i+1, p.Year, title, p.Citations, p.Source)
		}
		fmt.Fprintf(out, "\n%d results\n", len(results))
		return nil
	},
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		store, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := queryOptsFromFlags(cmd, args)
		var path string
		switch format {
		case "yaml", "":
			path, err = store.ExportYAML(cmd.Context(), opts)
		case "json":
			path, err = store.ExportJSON(cmd.Context(), opts)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	},
}

// --- shared helpers ---

func openCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	cfg, err := catalogConfig(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	flags := cmd.Flags()
	queryText, _ := flags.GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	author, _ := flags.GetString("author")
	from, _ := flags.GetInt("from")
	to, _ := flags.GetInt("to")
	source, _ := flags.GetString("source")
	tag, _ := flags.GetString("tag")
	limit, _ := flags.GetInt("limit")

	return catalog.QueryOptions{
		Query:      queryText,
		Author:     author,
		YearFrom:   from,
		YearTo:     to,
		Source:     types.Source(source),
		Tag:        tag,
		MaxResults: limit,
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "full-text search query")
	cmd.Flags().String("author", "", "filter by author (substring)")
	cmd.Flags().Int("from", 0, "earliest publication year")
	cmd.Flags().Int("to", 0, "latest publication year")
	cmd.Flags().String("source", "", "filter by source: google_scholar, hybrid, europe_pmc, manual")
	cmd.Flags().String("tag", "", "filter by tag")
}

func init() {
	catalogCmd.PersistentFlags().String("catalog-dir", "", "catalog directory (default: catalog)")
	catalogCmd.PersistentFlags().String("dataset", "", "dataset file (default: sync.output_path)")

	addFilterFlags(catalogQueryCmd)
	catalogQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogQueryCmd.Flags().Bool("json", false, "output results as JSON")

	addFilterFlags(catalogExportCmd)
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	catalogCmd.AddCommand(catalogIndexCmd)
	catalogCmd.AddCommand(catalogQueryCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
