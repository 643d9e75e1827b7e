// Package cache holds the ledger read cache: the locally cached balance,
// allowance, and pool-total figures with their freshness. The cache is the
// only local source of ledger truth; nothing in the process ever adjusts a
// balance optimistically.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// Config holds the cache parameters.
type Config struct {
	// User is the wallet whose balance and allowance are tracked.
	User string

	// Spender is the vault address the allowance is granted to.
	Spender string

	// RefreshInterval is the proactive polling cadence while at least one
	// consumer is subscribed (default 5s).
	RefreshInterval time.Duration

	// MaxAge is the staleness bound: a figure older than this is reported
	// unknown, never zero (default 30s).
	MaxAge time.Duration
}

// Figures caches the three ledger figures. At most one fetch per figure key
// is ever in flight; concurrent refreshes coalesce through singleflight.
type Figures struct {
	cfg    Config
	reader domain.LedgerReader
	bus    domain.SignalBus
	logger *slog.Logger

	sf singleflight.Group

	mu          sync.RWMutex
	figs        map[domain.FigureKey]domain.Figure
	subscribers int

	wake chan struct{}
}

// New creates the cache. It holds no figures until the first refresh.
func New(cfg Config, reader domain.LedgerReader, bus domain.SignalBus, logger *slog.Logger) *Figures {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Second
	}
	return &Figures{
		cfg:    cfg,
		reader: reader,
		bus:    bus,
		figs:   make(map[domain.FigureKey]domain.Figure),
		wake:   make(chan struct{}, 1),
		logger: logger.With(slog.String("component", "ledger_cache")),
	}
}

// Get returns the cached figure for key. ok is false when the figure was
// never fetched or is older than the staleness bound; the stale value is
// still returned so displays can grey it out rather than show zero.
func (f *Figures) Get(key domain.FigureKey) (domain.Figure, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fig, ok := f.figs[key]
	if !ok {
		return domain.Figure{}, false
	}
	out := domain.Figure{Value: new(big.Int).Set(fig.Value), FetchedAt: fig.FetchedAt}
	fresh := time.Since(fig.FetchedAt) <= f.cfg.MaxAge
	return out, fresh
}

// Acquire registers a consumer; polling runs only while consumers exist.
// The first consumer triggers an immediate refresh.
func (f *Figures) Acquire() {
	f.mu.Lock()
	f.subscribers++
	first := f.subscribers == 1
	f.mu.Unlock()
	if first {
		f.nudge()
	}
}

// Release drops a consumer registration. With zero consumers the refresh
// loop stops polling the ledger.
func (f *Figures) Release() {
	f.mu.Lock()
	if f.subscribers > 0 {
		f.subscribers--
	}
	f.mu.Unlock()
}

// Invalidate marks the given figures (all when none given) stale and forces
// a prompt refresh that bypasses any in-flight coalescing, so the next read
// reflects ledger truth rather than an assumed local delta.
func (f *Figures) Invalidate(keys ...domain.FigureKey) {
	if len(keys) == 0 {
		keys = domain.AllFigures
	}

	f.mu.Lock()
	for _, key := range keys {
		if fig, ok := f.figs[key]; ok {
			fig.FetchedAt = time.Time{}
			f.figs[key] = fig
		}
		f.sf.Forget(string(key))
	}
	f.mu.Unlock()

	f.logger.Debug("figures invalidated", slog.Int("count", len(keys)))
	f.nudge()
}

// Run drives the proactive refresh loop until ctx is cancelled.
func (f *Figures) Run(ctx context.Context) error {
	f.logger.InfoContext(ctx, "ledger cache started",
		slog.Duration("interval", f.cfg.RefreshInterval),
	)
	defer f.logger.Info("ledger cache stopped")

	ticker := time.NewTicker(f.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f.subscribed() {
				f.Refresh(ctx)
			}
		case <-f.wake:
			f.Refresh(ctx)
		}
	}
}

// Refresh fetches all three figures once. Failed reads keep the previous
// figure (it simply keeps aging toward stale) and are retried on the next
// interval. Concurrent callers coalesce per figure key.
func (f *Figures) Refresh(ctx context.Context) {
	changed := false
	for _, key := range domain.AllFigures {
		if f.refreshOne(ctx, key) {
			changed = true
		}
	}
	if changed {
		f.publish(ctx)
	}
}

// refreshOne fetches a single figure through singleflight and reports
// whether the cached value changed.
func (f *Figures) refreshOne(ctx context.Context, key domain.FigureKey) bool {
	v, err, _ := f.sf.Do(string(key), func() (any, error) {
		return f.fetch(ctx, key)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			f.logger.WarnContext(ctx, "figure fetch failed, keeping stale value",
				slog.String("figure", string(key)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	value := v.(*big.Int)

	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.figs[key]
	f.figs[key] = domain.Figure{Value: new(big.Int).Set(value), FetchedAt: time.Now()}
	return !had || prev.Value.Cmp(value) != 0
}

func (f *Figures) fetch(ctx context.Context, key domain.FigureKey) (*big.Int, error) {
	switch key {
	case domain.FigureBalance:
		return f.reader.ReadBalance(ctx, f.cfg.User)
	case domain.FigureAllowance:
		return f.reader.ReadAllowance(ctx, f.cfg.User, f.cfg.Spender)
	case domain.FigurePoolTotal:
		return f.reader.ReadPoolTotal(ctx)
	default:
		return nil, fmt.Errorf("cache: unknown figure %q: %w", key, domain.ErrLedgerRead)
	}
}

// publish pushes the fresh figures to the balances channel for the
// presentation layer.
func (f *Figures) publish(ctx context.Context) {
	if f.bus == nil {
		return
	}

	f.mu.RLock()
	payload := make(map[string]any, len(f.figs)+1)
	payload["event"] = "balances"
	for key, fig := range f.figs {
		payload[string(key)] = map[string]any{
			"value":      fig.Value.String(),
			"fetched_at": fig.FetchedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	f.mu.RUnlock()

	data, _ := json.Marshal(payload)
	if err := f.bus.Publish(ctx, "balances", data); err != nil {
		f.logger.WarnContext(ctx, "publish balances failed", slog.String("error", err.Error()))
	}
}

func (f *Figures) subscribed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.subscribers > 0
}

func (f *Figures) nudge() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Compile-time interface check.
var _ domain.FigureSource = (*Figures)(nil)
