package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/auctiondash/internal/cache"
	"github.com/alanyoungcy/auctiondash/internal/cache/memory"
	"github.com/alanyoungcy/auctiondash/internal/cache/redis"
	"github.com/alanyoungcy/auctiondash/internal/config"
	"github.com/alanyoungcy/auctiondash/internal/crypto"
	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/engine"
	"github.com/alanyoungcy/auctiondash/internal/feed"
	"github.com/alanyoungcy/auctiondash/internal/ledger"
	"github.com/alanyoungcy/auctiondash/internal/notify"
	"github.com/alanyoungcy/auctiondash/internal/orchestrator"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	SignalBus domain.SignalBus

	Feed    *feed.Client
	Engine  *engine.Engine
	Clock   *engine.Clock
	Ledger  *ledger.Client
	Figures *cache.Figures

	// Orchestrator is nil in monitor mode; the liquidity write path is
	// only wired when a signing key is configured.
	Orchestrator *orchestrator.Orchestrator

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signal bus: Redis when configured, in-process otherwise ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.SignalBus = memory.NewBus()
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Wallet key (full mode only) ---
	var key *ecdsa.PrivateKey
	if strings.ToLower(cfg.Mode) == "full" {
		var err error
		key, err = crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
	}

	// --- Ledger client ---
	ledgerClient, err := ledger.New(ctx, ledger.Config{
		RPCURL:       cfg.Ledger.RPCURL,
		ChainID:      cfg.Ledger.ChainID,
		VaultAddress: cfg.Ledger.VaultAddress,
		TokenAddress: cfg.Ledger.TokenAddress,
	}, key, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	closers = append(closers, ledgerClient.Close)
	deps.Ledger = ledgerClient

	// --- Figure cache ---
	deps.Figures = cache.New(cache.Config{
		User:            ledgerClient.Account(),
		Spender:         cfg.Ledger.VaultAddress,
		RefreshInterval: cfg.Cache.RefreshInterval.Duration,
		MaxAge:          cfg.Cache.MaxAge.Duration,
	}, ledgerClient, deps.SignalBus, logger)

	// --- Feed + reconciliation engine + expiry clock ---
	deps.Feed = feed.NewClient(feed.Config{
		URL:           cfg.Feed.URL,
		ReconnectBase: cfg.Feed.ReconnectBase.Duration,
		ReconnectMax:  cfg.Feed.ReconnectMax.Duration,
	}, logger)
	closers = append(closers, deps.Feed.Close)

	deps.Engine = engine.New(engine.Config{
		HistoryRetention: cfg.Engine.HistoryRetention,
		ExpiryGrace:      cfg.Engine.ExpiryGrace.Duration,
	}, logger)
	deps.Clock = engine.NewClock(deps.Engine, cfg.Engine.TickInterval.Duration, logger)

	// --- Transaction orchestrator (only with a signing key) ---
	if key != nil {
		deps.Orchestrator = orchestrator.New(orchestrator.Config{
			Spender:        cfg.Ledger.VaultAddress,
			ConfirmTimeout: cfg.Ledger.ConfirmTimeout.Duration,
		}, ledgerClient, deps.Figures, deps.SignalBus, deps.Notifier, logger)
	}

	return deps, cleanup, nil
}
