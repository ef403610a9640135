package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 15*time.Minute, cfg.QuoteDefaultTTL)
}

func TestLoadRejectsDefaultTTLAboveMaxTTL(t *testing.T) {
	t.Setenv("RELAY_QUOTE_DEFAULT_TTL", "2h")
	t.Setenv("RELAY_QUOTE_MAX_TTL", "1h")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadWithOverlayAppliesTOMLFileBelowEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = ":9090"`+"\n"), 0o644))

	cfg, err := LoadWithOverlay(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)

	t.Setenv("RELAY_LISTEN_ADDR", ":7070")
	cfg, err = LoadWithOverlay(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ListenAddr, "env vars must win over the file overlay")
}

func TestLoadWithOverlayAppliesYAMLRateLimitBlock(t *testing.T) {
	t.Setenv("RELAY_RATE_LIMITS", "ip: 500\npubkey: 250\n")
	cfg, err := LoadWithOverlay("")
	require.NoError(t, err)
	require.Equal(t, 500, cfg.RateLimitIP)
	require.Equal(t, 250, cfg.RateLimitPubkey)
}
