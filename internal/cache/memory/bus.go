// Package memory provides an in-process SignalBus for single-node
// deployments (no Redis configured) and for tests.
package memory

import (
	"context"
	"path"
	"sync"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

type subscription struct {
	pattern string
	ch      chan []byte
}

// Bus is an in-memory pub/sub fan-out with the same contract as the Redis
// signal bus, including glob channel patterns.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Publish delivers the payload to every matching subscriber. Slow
// subscribers drop messages rather than block the publisher.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !matches(sub.pattern, channel) {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channels matching
// the given name or glob pattern. It closes when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &subscription{pattern: channel, ch: make(chan []byte, 128)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

func matches(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// Compile-time interface check.
var _ domain.SignalBus = (*Bus)(nil)
