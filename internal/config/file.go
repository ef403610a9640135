package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// fileOverlay is the optional static-file shape read before environment
// variables are applied. Every field is optional; a zero value leaves
// the built-in default (or a later env var) in place.
type fileOverlay struct {
	ListenAddr  string `toml:"listen_addr"`
	Environment string `toml:"environment"`
	DatabaseURL string `toml:"database_url"`
	LogFile     string `toml:"log_file"`

	RateLimits rateLimitOverlay `toml:"rate_limits" yaml:"rate_limits"`
}

// rateLimitOverlay lets an operator tune per-scope limits without a code
// change, parsed with the same library gateway/middleware config loaders
// reach for when a block is nested rather than flat.
type rateLimitOverlay struct {
	WindowSeconds int `toml:"window_seconds" yaml:"window_seconds"`
	IP            int `toml:"ip" yaml:"ip"`
	Pubkey        int `toml:"pubkey" yaml:"pubkey"`
	Strict        int `toml:"strict" yaml:"strict"`
}

// LoadWithOverlay applies an optional TOML config file and a standalone
// RELAY_RATE_LIMITS YAML block (if set) on top of the built-in defaults,
// then lets environment variables win over both: the file/YAML overlay
// only seeds the fallback LoadFrom uses when a variable is unset, so any
// RELAY_* variable present in the environment still takes precedence.
// configPath may be empty.
func LoadWithOverlay(configPath string) (*Config, error) {
	var overlay fileOverlay
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &overlay); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", configPath, err)
		}
	}
	if raw := os.Getenv("RELAY_RATE_LIMITS"); raw != "" {
		var rl rateLimitOverlay
		if err := yaml.Unmarshal([]byte(raw), &rl); err != nil {
			return nil, fmt.Errorf("config: failed to parse RELAY_RATE_LIMITS: %w", err)
		}
		overlay.RateLimits = rl
	}

	base := defaultConfig()
	if overlay.ListenAddr != "" {
		base.ListenAddr = overlay.ListenAddr
	}
	if overlay.Environment != "" {
		base.Environment = overlay.Environment
	}
	if overlay.DatabaseURL != "" {
		base.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}
	if overlay.RateLimits.WindowSeconds > 0 {
		base.RateLimitWindow = secondsToDuration(overlay.RateLimits.WindowSeconds)
	}
	if overlay.RateLimits.IP > 0 {
		base.RateLimitIP = overlay.RateLimits.IP
	}
	if overlay.RateLimits.Pubkey > 0 {
		base.RateLimitPubkey = overlay.RateLimits.Pubkey
	}
	if overlay.RateLimits.Strict > 0 {
		base.RateLimitStrict = overlay.RateLimits.Strict
	}

	return LoadFrom(base)
}
