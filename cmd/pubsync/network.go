// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/dataset"
	"github.com/pdiddy/pubsync/internal/network"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Build the citation network for publications with DOIs",
	Long: `Network reads the DOIs in the dataset, collects each publication's
references from CrossRef and its citing works from OpenCitations, and
writes the resulting graph to network.json.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := networkConfig(cmd)
		if err != nil {
			return err
		}

		ds, err := dataset.Read(datasetPath(cmd))
		if err != nil {
			return err
		}
		dois := network.LoadDOIs(ds)
		if len(dois) == 0 {
			return fmt.Errorf("no DOIs in dataset")
		}

		b := network.NewBuilder(cfg, slog.Default())
		b.Out = cmd.OutOrStdout()
		graph, err := b.Build(cmd.Context(), dois)
		if err != nil {
			return err
		}
		if err := network.Write(graph, cfg.OutputPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Network written to %s\n", cfg.OutputPath)
		return nil
	},
}

func init() {
	networkCmd.Flags().String("dataset", "", "dataset file (default: sync.output_path)")
	networkCmd.Flags().String("output", "", "network file (default: network.output_path)")

	rootCmd.AddCommand(networkCmd)
}
