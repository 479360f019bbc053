package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroValueConfigIdentifiesWithoutPanicking(t *testing.T) {
	var cfg Config
	identify := cfg.Identify()

	require.Equal(t, "", identify.Token)
	require.NotEmpty(t, identify.OS)
	require.NotEmpty(t, identify.Browser)
	require.NotEmpty(t, identify.Device)
	require.NotEmpty(t, identify.UserAgent)
}

func TestZeroValueConfigTimeoutsFallBackToDefaults(t *testing.T) {
	var cfg Config
	require.Equal(t, defaultDialTimeout, cfg.DialTimeout())
	require.Equal(t, defaultDisconnectTimeout, cfg.DisconnectTimeout())
}

func TestLoadAppliesDocumentOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token: abc123
os: custom-os
adapter:
  dial_timeout: 5s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "abc123", cfg.Token)
	require.Equal(t, "custom-os", cfg.OS)
	require.Equal(t, defaultBrowser, cfg.Browser)
	require.Equal(t, 5*1e9, float64(cfg.DialTimeout()))
}

func TestLoadMissingFileReturnsDefaultsAndError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, Default(), cfg)
}
