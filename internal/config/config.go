// Package config loads relay runtime configuration from environment
// variables, following the getenv-with-fallback convention used by the
// gateway services this relay is descended from.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime knob named in the relay's external
// interface specification, all optional with documented defaults.
type Config struct {
	ListenAddr  string
	Environment string
	DatabaseURL string
	LogFile     string

	// Auth Guard
	AuthSkew time.Duration
	BodyMax  int64

	// Nonce Store
	NonceTTL time.Duration

	// Idempotency Store
	IdempotencyTTL time.Duration

	// Rate Limiter
	RateLimitWindow    time.Duration
	RateLimitIP        int
	RateLimitPubkey    int
	RateLimitStrict    int

	// Job Lifecycle Engine
	QuoteDefaultTTL     time.Duration
	QuoteMaxTTL         time.Duration
	AcceptToPaymentTTL  time.Duration
	LockTTL             time.Duration

	// Heartbeat / Notifier
	HeartbeatMaxWait time.Duration

	// Non-spec admin diagnostics surface (§13)
	AdminJWTSecret string
}

// defaultConfig returns the built-in defaults from spec §6 "Environment
// knobs", before any file overlay or environment variable is applied.
func defaultConfig() *Config {
	return &Config{
		ListenAddr:         ":8080",
		Environment:        "development",
		DatabaseURL:        "",
		LogFile:            "",
		AuthSkew:           60 * time.Second,
		BodyMax:            300 * 1024,
		NonceTTL:           10 * time.Minute,
		IdempotencyTTL:     24 * time.Hour,
		RateLimitWindow:    60 * time.Second,
		RateLimitIP:        120,
		RateLimitPubkey:    60,
		RateLimitStrict:    30,
		QuoteDefaultTTL:    15 * time.Minute,
		QuoteMaxTTL:        60 * time.Minute,
		AcceptToPaymentTTL: 30 * time.Minute,
		LockTTL:            5 * time.Minute,
		HeartbeatMaxWait:   30 * time.Second,
		AdminJWTSecret:     "",
	}
}

// Load reads configuration from the process environment, applying the
// defaults from spec §6 "Environment knobs" wherever a variable is unset.
func Load() (*Config, error) {
	return LoadFrom(defaultConfig())
}

// LoadFrom reads configuration from the process environment the same way
// Load does, but falls back to base instead of the built-in defaults
// wherever a variable is unset. This lets LoadWithOverlay seed base from a
// config file and still have environment variables win, since every
// getenv* helper below only overrides a field when its variable is
// actually set.
func LoadFrom(base *Config) (*Config, error) {
	cfg := &Config{
		ListenAddr:         getenv("RELAY_LISTEN_ADDR", base.ListenAddr),
		Environment:        getenv("RELAY_ENV", base.Environment),
		DatabaseURL:        getenv("RELAY_DATABASE_URL", base.DatabaseURL),
		LogFile:            getenv("RELAY_LOG_FILE", base.LogFile),
		AuthSkew:           base.AuthSkew,
		BodyMax:            base.BodyMax,
		NonceTTL:           base.NonceTTL,
		IdempotencyTTL:     base.IdempotencyTTL,
		RateLimitWindow:    base.RateLimitWindow,
		RateLimitIP:        base.RateLimitIP,
		RateLimitPubkey:    base.RateLimitPubkey,
		RateLimitStrict:    base.RateLimitStrict,
		QuoteDefaultTTL:    base.QuoteDefaultTTL,
		QuoteMaxTTL:        base.QuoteMaxTTL,
		AcceptToPaymentTTL: base.AcceptToPaymentTTL,
		LockTTL:            base.LockTTL,
		HeartbeatMaxWait:   base.HeartbeatMaxWait,
		AdminJWTSecret:     getenv("RELAY_ADMIN_JWT_SECRET", base.AdminJWTSecret),
	}

	var err error
	if cfg.AuthSkew, err = getenvDuration("RELAY_AUTH_SKEW", cfg.AuthSkew); err != nil {
		return nil, err
	}
	if cfg.BodyMax, err = getenvInt64("RELAY_BODY_MAX_BYTES", cfg.BodyMax); err != nil {
		return nil, err
	}
	if cfg.NonceTTL, err = getenvDuration("RELAY_NONCE_TTL", cfg.NonceTTL); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getenvDuration("RELAY_IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getenvDuration("RELAY_RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.RateLimitIP, err = getenvInt("RELAY_RATE_LIMIT_IP", cfg.RateLimitIP); err != nil {
		return nil, err
	}
	if cfg.RateLimitPubkey, err = getenvInt("RELAY_RATE_LIMIT_PUBKEY", cfg.RateLimitPubkey); err != nil {
		return nil, err
	}
	if cfg.RateLimitStrict, err = getenvInt("RELAY_RATE_LIMIT_STRICT", cfg.RateLimitStrict); err != nil {
		return nil, err
	}
	if cfg.QuoteDefaultTTL, err = getenvDuration("RELAY_QUOTE_DEFAULT_TTL", cfg.QuoteDefaultTTL); err != nil {
		return nil, err
	}
	if cfg.QuoteMaxTTL, err = getenvDuration("RELAY_QUOTE_MAX_TTL", cfg.QuoteMaxTTL); err != nil {
		return nil, err
	}
	if cfg.AcceptToPaymentTTL, err = getenvDuration("RELAY_ACCEPT_PAYMENT_TTL", cfg.AcceptToPaymentTTL); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getenvDuration("RELAY_LOCK_TTL", cfg.LockTTL); err != nil {
		return nil, err
	}
	if cfg.HeartbeatMaxWait, err = getenvDuration("RELAY_HEARTBEAT_MAX_WAIT", cfg.HeartbeatMaxWait); err != nil {
		return nil, err
	}

	if cfg.QuoteDefaultTTL <= 0 || cfg.QuoteDefaultTTL > cfg.QuoteMaxTTL {
		return nil, fmt.Errorf("config: RELAY_QUOTE_DEFAULT_TTL must be in (0, RELAY_QUOTE_MAX_TTL]")
	}
	if cfg.QuoteMaxTTL <= 0 {
		return nil, fmt.Errorf("config: RELAY_QUOTE_MAX_TTL must be positive")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getenvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}
