// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubsync/internal/secrets"
	"github.com/pdiddy/pubsync/pkg/types"
)

// syncConfig returns the layered sync configuration and checks that a
// profile and an output path are set.
func syncConfig(cmd *cobra.Command) (types.SyncConfig, error) {
	cfg, err := loadSyncConfig(cmd)
	if err != nil {
		return cfg, err
	}
	if cfg.ProfileURL == "" {
		return cfg, fmt.Errorf("profile URL is required: set sync.profile_url or --profile-url")
	}
	if cfg.OutputPath == "" {
		return cfg, fmt.Errorf("output path is required: set sync.output_path or --output")
	}
	return cfg, nil
}

// loadSyncConfig layers defaults, the "sync" config section, secrets, and
// command flags, in increasing precedence.
func loadSyncConfig(cmd *cobra.Command) (types.SyncConfig, error) {
	cfg := types.DefaultSyncConfig()
	if err := viper.UnmarshalKey("sync", &cfg); err != nil {
		return cfg, fmt.Errorf("reading sync config: %w", err)
	}
	secrets.Fill(&cfg.Enrich.Email, loadedSecrets, secrets.EuropePMCEmail)

	flags := cmd.Flags()
	if f := flags.Lookup("output"); f != nil && f.Changed {
		cfg.OutputPath = f.Value.String()
	}
	if f := flags.Lookup("profile-url"); f != nil && f.Changed {
		cfg.ProfileURL = f.Value.String()
	}
	if v, err := flags.GetBool("dry-run"); err == nil && flags.Changed("dry-run") {
		cfg.DryRun = v
	}
	if v, err := flags.GetBool("no-browser"); err == nil && flags.Changed("no-browser") {
		cfg.Browser.Disabled = v
	}
	if v, err := flags.GetBool("no-enrich"); err == nil && flags.Changed("no-enrich") {
		cfg.Enrich.Disabled = v
	}
	if v, err := flags.GetInt("max-reveal"); err == nil && flags.Changed("max-reveal") {
		cfg.Browser.MaxRevealAttempts = v
	}
	return cfg, nil
}

func catalogConfig(cmd *cobra.Command) (types.CatalogConfig, error) {
	cfg := types.DefaultCatalogConfig()
	if err := viper.UnmarshalKey("catalog", &cfg); err != nil {
		return cfg, fmt.Errorf("reading catalog config: %w", err)
	}
	if f := cmd.Flags().Lookup("catalog-dir"); f != nil && f.Changed {
		cfg.Dir = f.Value.String()
	}
	return cfg, nil
}

func networkConfig(cmd *cobra.Command) (types.NetworkConfig, error) {
	cfg := types.DefaultNetworkConfig()
	if err := viper.UnmarshalKey("network", &cfg); err != nil {
		return cfg, fmt.Errorf("reading network config: %w", err)
	}
	secrets.Fill(&cfg.Mailto, loadedSecrets, secrets.CrossRefMailto)
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		cfg.OutputPath = f.Value.String()
	}
	return cfg, nil
}

// datasetPath is the dataset the catalog and network commands read.
func datasetPath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("dataset"); f != nil && f.Changed {
		return f.Value.String()
	}
	if p := viper.GetString("sync.output_path"); p != "" {
		return p
	}
	return types.DefaultSyncConfig().OutputPath
}
