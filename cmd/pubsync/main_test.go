// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubsync/internal/secrets"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "text at info hides debug", level: "info", format: "text",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=shown")
				assert.NotContains(t, out, "hidden")
			},
		},
		{
			name: "json", level: "debug", format: "json",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"shown"`)
				assert.Contains(t, out, `"msg":"hidden"`)
			},
		},
		{name: "empty level defaults to info", level: "", format: "", check: func(t *testing.T, out string) {
			assert.NotContains(t, out, "hidden")
		}},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.level, tt.format, &buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Debug("hidden")
			logger.Info("shown")
			tt.check(t, buf.String())
		})
	}
}

func newSyncTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sync"}
	cmd.Flags().String("output", "", "")
	cmd.Flags().String("profile-url", "", "")
	cmd.Flags().Bool("dry-run", false, "")
	cmd.Flags().Bool("no-browser", false, "")
	cmd.Flags().Bool("no-enrich", false, "")
	cmd.Flags().Int("max-reveal", 0, "")
	return cmd
}

func TestSyncConfig_Precedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	loadedSecrets = map[string]string{secrets.EuropePMCEmail: "pi@example.org"}
	t.Cleanup(func() { loadedSecrets = nil })

	viper.Set("sync", map[string]any{
		"output_path": "from-config.json",
		"browser":     map[string]any{"click_settle": "1s", "max_reveal_attempts": 7},
		"extract":     map[string]any{"max_citations": 50000},
	})

	cmd := newSyncTestCmd()
	require.NoError(t, cmd.Flags().Set("profile-url", "https://example.org/profile"))
	require.NoError(t, cmd.Flags().Set("no-browser", "true"))

	cfg, err := syncConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-config.json", cfg.OutputPath)
	assert.Equal(t, "https://example.org/profile", cfg.ProfileURL)
	assert.True(t, cfg.Browser.Disabled)
	assert.Equal(t, 7, cfg.Browser.MaxRevealAttempts)
	assert.Equal(t, time.Second, cfg.Browser.ClickSettle)
	assert.Equal(t, 2*time.Second, cfg.Browser.ScrollSettle, "unset keys keep defaults")
	assert.Equal(t, 50000, cfg.Extract.MaxCitations)
	assert.Equal(t, 1900, cfg.Extract.CitationYearFloor)
	assert.Equal(t, "pi@example.org", cfg.Enrich.Email)
	assert.False(t, cfg.DryRun)
}

func TestSyncConfig_FlagsOverrideConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("sync", map[string]any{"output_path": "from-config.json", "enrich": map[string]any{"email": "cfg@example.org"}})
	loadedSecrets = map[string]string{secrets.EuropePMCEmail: "secret@example.org"}
	t.Cleanup(func() { loadedSecrets = nil })

	cmd := newSyncTestCmd()
	require.NoError(t, cmd.Flags().Set("output", "flag.json"))
	require.NoError(t, cmd.Flags().Set("max-reveal", "3"))
	require.NoError(t, cmd.Flags().Set("dry-run", "true"))

	cfg, err := syncConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "flag.json", cfg.OutputPath)
	assert.Equal(t, 3, cfg.Browser.MaxRevealAttempts)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "cfg@example.org", cfg.Enrich.Email, "explicit config wins over secrets")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "pubsync dev\n", out.String())
}
