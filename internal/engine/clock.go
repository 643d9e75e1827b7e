package engine

import (
	"context"
	"log/slog"
	"time"
)

// Clock drives time-dependent auction transitions independent of feed
// activity: a feed may go quiet on an auction without ever signaling
// completion, and the record must still resolve after its deadline.
type Clock struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewClock creates a clock ticking at the given cadence (1s when zero).
func NewClock(engine *Engine, interval time.Duration, logger *slog.Logger) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		engine:   engine,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry_clock")),
	}
}

// Run ticks until ctx is cancelled. time.Ticker drops missed ticks while the
// process is stalled or suspended, so a late wake performs one catch-up Tick
// with the current monotonic now rather than replaying a backlog.
func (c *Clock) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "expiry clock started", slog.Duration("interval", c.interval))
	defer c.logger.Info("expiry clock stopped")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.engine.Tick(time.Now())
		}
	}
}
