// Package feed maintains the long-lived WebSocket connection to the auction
// feed, decodes inbound messages into typed events, and delivers them to the
// reconciliation engine through a single ordered intake channel.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

const (
	// writeWait is the time allowed to write a control message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// intakeBuffer is the capacity of the event channel to the engine.
	intakeBuffer = 256

	// healthyConnAge is how long a connection must live for the reconnect
	// backoff to reset.
	healthyConnAge = 30 * time.Second
)

// Config carries the feed client parameters.
type Config struct {
	URL string

	// ReconnectBase and ReconnectMax bound the exponential backoff between
	// reconnect attempts. Retries are unlimited; the feed is assumed
	// perpetually available.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// Client owns at most one live feed connection and reconnects forever on
// failure. Transport errors never surface to the caller beyond the exposed
// connection status.
type Client struct {
	cfg    Config
	events chan domain.FeedEvent
	status atomic.Value // domain.FeedStatus

	closeOnce sync.Once
	done      chan struct{}

	logger *slog.Logger
}

// NewClient creates a feed client for the given endpoint.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 60 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		events: make(chan domain.FeedEvent, intakeBuffer),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "feed")),
	}
	c.status.Store(domain.FeedClosed)
	return c
}

// Events returns the intake channel consumed by the engine. Delivery order
// is preserved; events for the same auction ID arrive in the order received.
func (c *Client) Events() <-chan domain.FeedEvent {
	return c.events
}

// Status reports the connection state for display.
func (c *Client) Status() domain.FeedStatus {
	return c.status.Load().(domain.FeedStatus)
}

// Run dials the feed and pumps decoded events until ctx is cancelled or
// Close is called. Disconnects trigger capped exponential backoff with
// jitter; the backoff resets after any healthy connection.
func (c *Client) Run(ctx context.Context) error {
	defer c.status.Store(domain.FeedClosed)
	defer close(c.events)

	delay := c.cfg.ReconnectBase
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		start := time.Now()
		err := c.runConnection(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > healthyConnAge {
			// The connection did real work before dropping; start the
			// backoff over.
			delay = c.cfg.ReconnectBase
			attempt = 0
		}
		select {
		case <-c.done:
			return nil
		default:
		}

		c.status.Store(domain.FeedClosed)
		c.logger.Warn("feed disconnected, reconnecting",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(jitter(delay)):
		}

		delay *= 2
		if delay > c.cfg.ReconnectMax {
			delay = c.cfg.ReconnectMax
		}
	}
}

// Close stops the client and its reconnect loop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// runConnection dials once and reads until the connection drops. A healthy
// read loop resets the caller's backoff by returning only on error.
func (c *Client) runConnection(ctx context.Context) error {
	c.status.Store(domain.FeedConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.cfg.URL, domain.ErrFeedConnection)
	}
	defer conn.Close()

	c.status.Store(domain.FeedOpen)
	c.logger.InfoContext(ctx, "feed connected", slog.String("url", c.cfg.URL))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Close the connection when ctx ends so the blocked read returns, and
	// keep the connection alive with periodic pings.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.pingLoop(pingCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: read: %w", domain.ErrFeedConnection)
		}
		c.dispatch(ctx, raw)
	}
}

// dispatch decodes one raw message and forwards the event. Malformed
// payloads are logged and dropped; they never tear down the connection.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	ev, err := decodeEvent(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping malformed feed message",
			slog.Int("payload_len", len(raw)),
			slog.String("error", err.Error()),
		)
		return
	}
	if ev == nil {
		return // unknown message type, forward compatible
	}

	select {
	case c.events <- ev:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Unblock the read loop on shutdown.
			conn.SetReadDeadline(time.Now())
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// jitter spreads reconnect attempts to avoid thundering herds: the returned
// duration is uniform in [d/2, d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
