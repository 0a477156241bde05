// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultUserAgent is the browser-like User-Agent used for the profile page.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// BrowserConfig holds settings for the page interaction driver.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty" mapstructure:"remote_url"`

	// Disabled skips the browser and goes straight to the HTTP fetch path.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`

	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// NavigationTimeout bounds the initial page load (default 30s).
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout" mapstructure:"navigation_timeout"`

	// RowWaitTimeout bounds the wait for the first listing row (default 15s).
	RowWaitTimeout time.Duration `json:"row_wait_timeout" yaml:"row_wait_timeout" mapstructure:"row_wait_timeout"`

	// MaxRevealAttempts caps the reveal-more loop (default 20).
	MaxRevealAttempts int `json:"max_reveal_attempts" yaml:"max_reveal_attempts" mapstructure:"max_reveal_attempts"`

	// ClickSettle is the wait after clicking "show more" (default 3s).
	ClickSettle time.Duration `json:"click_settle" yaml:"click_settle" mapstructure:"click_settle"`

	// ScrollSettle is the wait after the scroll fallback (default 2s).
	ScrollSettle time.Duration `json:"scroll_settle" yaml:"scroll_settle" mapstructure:"scroll_settle"`
}

// ExtractConfig holds the heuristics used by the row extractor. The
// citation thresholds work around a column misalignment in the listing
// and are configurable rather than fixed.
type ExtractConfig struct {
	// ProfileHost prefixes relative row links (default https://scholar.google.com).
	ProfileHost string `json:"profile_host" yaml:"profile_host" mapstructure:"profile_host"`

	// UserID is the profile owner, used to synthesize row URLs.
	UserID string `json:"user_id" yaml:"user_id" mapstructure:"user_id"`

	// CitationYearFloor is the lower bound of the year-like range rejected
	// as a citation count (default 1900).
	CitationYearFloor int `json:"citation_year_floor" yaml:"citation_year_floor" mapstructure:"citation_year_floor"`

	// MaxCitations rejects implausibly large citation counts (default 10000).
	MaxCitations int `json:"max_citations" yaml:"max_citations" mapstructure:"max_citations"`
}

// EnrichConfig holds settings for the metadata enricher.
type EnrichConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Disabled skips enrichment entirely.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`

	// Delay is the pause between consecutive API calls (default 200ms).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// Email is sent to Europe PMC as a courtesy contact.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
}

// SyncConfig groups everything a sync run needs.
type SyncConfig struct {
	// ProfileURL is the listing page to scrape.
	ProfileURL string `json:"profile_url" yaml:"profile_url" mapstructure:"profile_url"`

	// OutputPath is the dataset file (read, then overwritten).
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`

	// DryRun runs every stage except the write.
	DryRun bool `json:"dry_run" yaml:"dry_run" mapstructure:"dry_run"`

	Browser BrowserConfig `json:"browser" yaml:"browser" mapstructure:"browser"`
	Extract ExtractConfig `json:"extract" yaml:"extract" mapstructure:"extract"`
	Enrich  EnrichConfig  `json:"enrich" yaml:"enrich" mapstructure:"enrich"`
}

// CatalogConfig holds settings for the local SQLite catalog.
type CatalogConfig struct {
	// Dir contains publications.db and export files.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default query limit (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// NetworkConfig holds settings for the citation network builder.
type NetworkConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// OutputPath is where network.json is written.
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`

	// Delay is the polite pause between API calls (default 200ms).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// Mailto is appended to CrossRef requests for the polite pool.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`
}

// DefaultSyncConfig returns a SyncConfig with every default filled in.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		ProfileURL: "https://scholar.google.com/citations?user=Rv6zyJ8AAAAJ&hl=en",
		OutputPath: "public/data/publications.json",
		Browser: BrowserConfig{
			UserAgent:         DefaultUserAgent,
			NavigationTimeout: 30 * time.Second,
			RowWaitTimeout:    15 * time.Second,
			MaxRevealAttempts: 20,
			ClickSettle:       3 * time.Second,
			ScrollSettle:      2 * time.Second,
		},
		Extract: ExtractConfig{
			ProfileHost:       "https://scholar.google.com",
			UserID:            "Rv6zyJ8AAAAJ",
			CitationYearFloor: 1900,
			MaxCitations:      10000,
		},
		Enrich: EnrichConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "pubsync/0.1",
			},
			Delay: 200 * time.Millisecond,
		},
	}
}

// DefaultCatalogConfig returns the catalog defaults.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{Dir: "catalog", MaxResults: 20}
}

// DefaultNetworkConfig returns the network builder defaults.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   15 * time.Second,
			UserAgent: "pubsync/0.1",
		},
		OutputPath: "public/data/network.json",
		Delay:      200 * time.Millisecond,
	}
}
