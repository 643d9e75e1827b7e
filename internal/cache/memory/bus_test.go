package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, "intents")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "intents", []byte(`{"state":"confirmed"}`)))
	assert.JSONEq(t, `{"state":"confirmed"}`, string(recv(t, ch)))
}

func TestBus_ChannelIsolation(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	auctions, err := bus.Subscribe(ctx, "auctions")
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, "kpis")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "kpis", []byte(`{}`)))
	require.NoError(t, bus.Publish(ctx, "auctions", []byte(`{"kind":"delta"}`)))

	msg := recv(t, auctions)
	assert.Contains(t, string(msg), "delta", "subscribers only see their own channel")
}

func TestBus_GlobPattern(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, "balance*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "balances", []byte(`{"balance":"1"}`)))
	assert.NotNil(t, recv(t, ch))
}

func TestBus_UnsubscribeOnContextCancel(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "status")
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "channel closes after cancellation")

	// Publishing after cancellation must not panic or block.
	assert.NoError(t, bus.Publish(context.Background(), "status", []byte(`{}`)))
}
