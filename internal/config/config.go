// Package config defines the top-level configuration for the trade ledger
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantstack/tradeledger/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEDGER_* environment variables.
type Config struct {
	Hyperliquid HyperliquidConfig `toml:"hyperliquid"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Redis       RedisConfig       `toml:"redis"`
	Leaderboard LeaderboardConfig `toml:"leaderboard"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// HyperliquidConfig holds info-API endpoint and retry parameters.
type HyperliquidConfig struct {
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	RetryDelayMs   int    `toml:"retry_delay_ms"`
}

// LedgerConfig holds attribution and capital-normalization parameters.
type LedgerConfig struct {
	TargetBuilder   string  `toml:"target_builder"`
	MaxStartCapital float64 `toml:"max_start_capital"`
}

// RedisConfig holds fetch-cache connection parameters. When Enabled is false
// an in-process cache is used instead.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// LeaderboardConfig holds the tracked account set and ranking metric for
// leaderboard mode.
type LeaderboardConfig struct {
	Users  []string `toml:"users"`
	Metric string   `toml:"metric"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Hyperliquid: HyperliquidConfig{
			APIURL:         "https://api.hyperliquid.xyz/info",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RetryDelayMs:   1000,
		},
		Ledger: LedgerConfig{
			MaxStartCapital: 10000,
		},
		Redis: RedisConfig{
			Enabled:         false,
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        20,
			MaxRetries:      3,
			TLSEnabled:      false,
			CacheTTLMinutes: 5,
		},
		Leaderboard: LeaderboardConfig{
			Metric: string(domain.MetricPnl),
		},
		Mode:     "pnl",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trades":      true,
	"pnl":         true,
	"positions":   true,
	"lifecycles":  true,
	"deposits":    true,
	"leaderboard": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trades, pnl, positions, lifecycles, deposits, leaderboard)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Hyperliquid.APIURL == "" {
		errs = append(errs, "hyperliquid: api_url must not be empty")
	}
	if c.Hyperliquid.TimeoutSeconds <= 0 {
		errs = append(errs, "hyperliquid: timeout_seconds must be > 0")
	}
	if c.Hyperliquid.MaxRetries < 1 {
		errs = append(errs, "hyperliquid: max_retries must be >= 1")
	}
	if c.Hyperliquid.RetryDelayMs < 0 {
		errs = append(errs, "hyperliquid: retry_delay_ms must be >= 0")
	}

	if c.Ledger.TargetBuilder != "" && !common.IsHexAddress(c.Ledger.TargetBuilder) {
		errs = append(errs, fmt.Sprintf("ledger: target_builder %q is not a hex address", c.Ledger.TargetBuilder))
	}
	if c.Ledger.MaxStartCapital <= 0 {
		errs = append(errs, "ledger: max_start_capital must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.CacheTTLMinutes < 1 {
			errs = append(errs, "redis: cache_ttl_minutes must be >= 1")
		}
	}

	if strings.ToLower(c.Mode) == "leaderboard" {
		if len(c.Leaderboard.Users) == 0 {
			errs = append(errs, "leaderboard: users must not be empty for leaderboard mode")
		}
		if !domain.Metric(c.Leaderboard.Metric).Valid() {
			errs = append(errs, fmt.Sprintf("leaderboard: unknown metric %q (valid: pnl, returnPct, volume, tradeCount)", c.Leaderboard.Metric))
		}
	}
	for _, u := range c.Leaderboard.Users {
		if !common.IsHexAddress(u) {
			errs = append(errs, fmt.Sprintf("leaderboard: user %q is not a hex address", u))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
