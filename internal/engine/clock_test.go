package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

func TestClock_ExpiresOverdueAuctions(t *testing.T) {
	eng := newTestEngine(10)
	eng.ApplyDelta(makeAuction("b1", 100, time.Now().Add(30*time.Millisecond)))

	clock := NewClock(eng, 10*time.Millisecond, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- clock.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(eng.ActiveAuctions()) == 0
	}, time.Second, 5*time.Millisecond, "the clock resolves the record even with a silent feed")

	history := eng.History()
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusExpired, history[0].Status)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewClock_DefaultsInterval(t *testing.T) {
	clock := NewClock(newTestEngine(10), 0, slog.Default())
	assert.Equal(t, time.Second, clock.interval)
}
