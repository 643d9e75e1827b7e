// Package config defines the top-level configuration for the auction
// dashboard backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONDASH_* environment variables.
type Config struct {
	Feed     FeedConfig   `toml:"feed"`
	Engine   EngineConfig `toml:"engine"`
	Cache    CacheConfig  `toml:"cache"`
	Ledger   LedgerConfig `toml:"ledger"`
	Wallet   WalletConfig `toml:"wallet"`
	Redis    RedisConfig  `toml:"redis"`
	Server   ServerConfig `toml:"server"`
	Notify   NotifyConfig `toml:"notify"`
	Mode     string       `toml:"mode"`
	LogLevel string       `toml:"log_level"`
}

// FeedConfig holds the auction feed endpoint and reconnect parameters.
type FeedConfig struct {
	URL           string   `toml:"url"`
	ReconnectBase duration `toml:"reconnect_base"`
	ReconnectMax  duration `toml:"reconnect_max"`
}

// EngineConfig holds reconciliation tunables.
type EngineConfig struct {
	HistoryRetention int      `toml:"history_retention"`
	ExpiryGrace      duration `toml:"expiry_grace"`
	TickInterval     duration `toml:"tick_interval"`
}

// CacheConfig holds the ledger figure cache parameters.
type CacheConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	MaxAge          duration `toml:"max_age"`
}

// LedgerConfig holds chain RPC and contract addresses.
type LedgerConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	ChainID        int64    `toml:"chain_id"`
	VaultAddress   string   `toml:"vault_address"`
	TokenAddress   string   `toml:"token_address"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
}

// WalletConfig holds wallet credentials for liquidity writes.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RedisConfig holds Redis connection parameters. An empty addr selects the
// in-process signal bus instead of Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			URL:           "ws://localhost:8080/ws",
			ReconnectBase: duration{1 * time.Second},
			ReconnectMax:  duration{60 * time.Second},
		},
		Engine: EngineConfig{
			HistoryRetention: 10,
			ExpiryGrace:      duration{0},
			TickInterval:     duration{1 * time.Second},
		},
		Cache: CacheConfig{
			RefreshInterval: duration{5 * time.Second},
			MaxAge:          duration{30 * time.Second},
		},
		Ledger: LedgerConfig{
			RPCURL:         "http://localhost:8545",
			ChainID:        31337,
			ConfirmTimeout: duration{90 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"tx_confirmed", "tx_failed", "feed_down"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode. "monitor" runs
// the feed, engine, and cache read-only; "full" adds the liquidity write path.
var validModes = map[string]bool{
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.URL == "" {
		errs = append(errs, "feed: url must not be empty")
	}
	if c.Feed.ReconnectBase.Duration <= 0 {
		errs = append(errs, "feed: reconnect_base must be > 0")
	}
	if c.Feed.ReconnectMax.Duration < c.Feed.ReconnectBase.Duration {
		errs = append(errs, "feed: reconnect_max must be >= reconnect_base")
	}

	// Engine
	if c.Engine.HistoryRetention < 1 {
		errs = append(errs, "engine: history_retention must be >= 1")
	}
	if c.Engine.ExpiryGrace.Duration < 0 {
		errs = append(errs, "engine: expiry_grace must not be negative")
	}
	if c.Engine.TickInterval.Duration <= 0 {
		errs = append(errs, "engine: tick_interval must be > 0")
	}

	// Cache
	if c.Cache.RefreshInterval.Duration <= 0 {
		errs = append(errs, "cache: refresh_interval must be > 0")
	}
	if c.Cache.MaxAge.Duration <= c.Cache.RefreshInterval.Duration {
		errs = append(errs, "cache: max_age must exceed refresh_interval")
	}

	// Ledger
	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url must not be empty")
	}
	if c.Ledger.ChainID <= 0 {
		errs = append(errs, "ledger: chain_id must be positive")
	}
	if c.Ledger.VaultAddress == "" {
		errs = append(errs, "ledger: vault_address must not be empty")
	}
	if c.Ledger.TokenAddress == "" {
		errs = append(errs, "ledger: token_address must not be empty")
	}
	if c.Ledger.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "ledger: confirm_timeout must be > 0")
	}

	// Wallet — required only when the write path is live.
	if strings.ToLower(c.Mode) == "full" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode full")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Redis — only checked when an addr is configured.
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — token and chat ID travel together.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
