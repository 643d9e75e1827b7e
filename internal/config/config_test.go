package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Ledger.VaultAddress = "0x1111111111111111111111111111111111111111"
	cfg.Ledger.TokenAddress = "0x2222222222222222222222222222222222222222"
	return cfg
}

func TestValidate_DefaultsWithAddresses(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "panic"
	cfg.Engine.HistoryRetention = 0
	cfg.Ledger.ChainID = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "history_retention")
	assert.Contains(t, err.Error(), "chain_id")
}

func TestValidate_FullModeRequiresWallet(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "full"
	assert.Error(t, cfg.Validate())

	cfg.Wallet.PrivateKey = "deadbeef"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[feed]
url = "wss://feed.example.com/ws"

[engine]
history_retention = 25
expiry_grace = "500ms"
`), 0o600))

	t.Setenv("AUCTIONDASH_FEED_URL", "wss://override.example.com/ws")
	t.Setenv("AUCTIONDASH_ENGINE_TICK_INTERVAL", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "wss://override.example.com/ws", cfg.Feed.URL, "env beats TOML")
	assert.Equal(t, 25, cfg.Engine.HistoryRetention)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.ExpiryGrace.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.TickInterval.Duration)
	assert.Equal(t, 5*time.Second, cfg.Cache.RefreshInterval.Duration, "untouched fields keep defaults")
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey, "original untouched")

	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "tx_confirmed", cfg.Notify.Events[0], "slices are copied")
}
