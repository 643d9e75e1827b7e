package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUCTIONDASH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AUCTIONDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.URL, "AUCTIONDASH_FEED_URL")
	setDuration(&cfg.Feed.ReconnectBase, "AUCTIONDASH_FEED_RECONNECT_BASE")
	setDuration(&cfg.Feed.ReconnectMax, "AUCTIONDASH_FEED_RECONNECT_MAX")

	// ── Engine ──
	setInt(&cfg.Engine.HistoryRetention, "AUCTIONDASH_ENGINE_HISTORY_RETENTION")
	setDuration(&cfg.Engine.ExpiryGrace, "AUCTIONDASH_ENGINE_EXPIRY_GRACE")
	setDuration(&cfg.Engine.TickInterval, "AUCTIONDASH_ENGINE_TICK_INTERVAL")

	// ── Cache ──
	setDuration(&cfg.Cache.RefreshInterval, "AUCTIONDASH_CACHE_REFRESH_INTERVAL")
	setDuration(&cfg.Cache.MaxAge, "AUCTIONDASH_CACHE_MAX_AGE")

	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "AUCTIONDASH_LEDGER_RPC_URL")
	setInt64(&cfg.Ledger.ChainID, "AUCTIONDASH_LEDGER_CHAIN_ID")
	setStr(&cfg.Ledger.VaultAddress, "AUCTIONDASH_LEDGER_VAULT_ADDRESS")
	setStr(&cfg.Ledger.TokenAddress, "AUCTIONDASH_LEDGER_TOKEN_ADDRESS")
	setDuration(&cfg.Ledger.ConfirmTimeout, "AUCTIONDASH_LEDGER_CONFIRM_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "AUCTIONDASH_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "AUCTIONDASH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "AUCTIONDASH_WALLET_KEY_PASSWORD")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUCTIONDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONDASH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONDASH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONDASH_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AUCTIONDASH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AUCTIONDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONDASH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AUCTIONDASH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIONDASH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONDASH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIONDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIONDASH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONDASH_MODE")
	setStr(&cfg.LogLevel, "AUCTIONDASH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
