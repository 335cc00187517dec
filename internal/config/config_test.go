package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "rbc", cfg.Mode)
	assert.Equal(t, ":8787", cfg.Server.Addr)
	assert.Equal(t, "arbiter.db", cfg.Store.Path)
	assert.Equal(t, 5, cfg.Resonance.SpineLimit)
	assert.InDelta(t, 0.7, cfg.Resonance.ShelveThreshold, 1e-9)
	assert.InDelta(t, 0.999, cfg.Integrity.PauseThreshold, 1e-9)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mode: arbiter
server:
  addr: ":9999"
resonance:
  spine_limit: 8
rules:
  overlay_path: /etc/arbiter/rules.yaml
  watch: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "arbiter", cfg.Mode)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Resonance.SpineLimit)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, "/etc/arbiter/rules.yaml", cfg.Rules.OverlayPath)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.999, cfg.Integrity.PauseThreshold, 1e-9)
	assert.Equal(t, "arbiter.db", cfg.Store.Path)
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ARBITER_MODE", "lint")
	t.Setenv("ARBITER_ADDR", ":7777")
	t.Setenv("ARBITER_DB_PATH", "/tmp/test.db")
	t.Setenv("ARBITER_PAUSE_THRESHOLD", "0.5")
	t.Setenv("ARBITER_VERBOSE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lint", cfg.Mode)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.Store.Path)
	assert.InDelta(t, 0.5, cfg.Integrity.PauseThreshold, 1e-9)
	assert.True(t, cfg.Logging.Verbose)
}

func TestLoad_BadEnvValuesIgnored(t *testing.T) {
	t.Setenv("ARBITER_PAUSE_THRESHOLD", "not a number")
	t.Setenv("ARBITER_VERBOSE", "not a bool")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 0.999, cfg.Integrity.PauseThreshold, 1e-9)
	assert.False(t, cfg.Logging.Verbose)
}
