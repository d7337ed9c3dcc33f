package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

func testExpert(id, name string) core.Expert {
	return core.Expert{
		ID:                id,
		Name:              name,
		ExpertiseTags:     []string{"legal", "compliance"},
		SystemPrompt:      "You are corporate legal counsel.",
		Temperature:       0.4,
		PreferredProvider: "claude",
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5, cfg.Defaults.MaxRounds)
	assert.InDelta(t, 0.8, cfg.Defaults.ConsensusThreshold, 0.001)
	assert.Equal(t, 8184, cfg.Server.Port)

	claude, ok := cfg.Providers["claude"]
	require.True(t, ok)
	assert.True(t, claude.Enabled)
	assert.Equal(t, 3, claude.RequestsPerMinute)

	assert.Equal(t, 10, cfg.RateLimits.Standard.DebatesPerHour)
	assert.Equal(t, 50, cfg.RateLimits.Premium.DebatesPerHour)
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Defaults.MaxRounds, cfg.Defaults.MaxRounds)
}

func TestLoadFromMergesProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
defaults:
  max_rounds: 7
providers:
  claude:
    requests_per_minute: 9
    enabled: true
server:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Defaults.MaxRounds)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 9, cfg.Providers["claude"].RequestsPerMinute)

	// Providers absent from the file come from defaults.
	openai, ok := cfg.Providers["openai"]
	require.True(t, ok)
	assert.True(t, openai.Enabled)
}

func TestLoadFromRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults: [not a map"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUOORUM_PORT", "7777")
	t.Setenv("QUOORUM_DB_PATH", "/tmp/override.db")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.Path)
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Defaults.MaxRounds = 9
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Defaults.MaxRounds)
}

func TestCreateRegistryHonorsEnabled(t *testing.T) {
	cfg := Default()
	disabled := cfg.Providers["gemini"]
	disabled.Enabled = false
	cfg.Providers["gemini"] = disabled

	registry := cfg.CreateRegistry()
	_, err := registry.Get("claude")
	assert.NoError(t, err)
	_, err = registry.Get("gemini")
	assert.Error(t, err)
}

func TestCreateExpertRegistryIncludesConfigured(t *testing.T) {
	cfg := Default()
	cfg.Experts = append(cfg.Experts, testExpert("legal-counsel", "Legal Counsel"))

	registry, err := cfg.CreateExpertRegistry()
	require.NoError(t, err)

	_, ok := registry.Get("legal-counsel")
	assert.True(t, ok)
	_, ok = registry.Get("critic")
	assert.True(t, ok)
}
