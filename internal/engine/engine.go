// Package engine holds the authoritative in-memory auction model. It is the
// single writer of auction state: feed events and clock ticks mutate the
// store through its methods, every other component reads copies.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// ChangeKind names what mutated the store.
type ChangeKind string

const (
	ChangeSnapshot ChangeKind = "snapshot"
	ChangeDelta    ChangeKind = "delta"
	ChangeExpiry   ChangeKind = "expiry"
)

// Change summarizes one applied mutation for subscribers. KPIs are the
// freshly recomputed aggregates after the mutation.
type Change struct {
	Kind ChangeKind     `json:"kind"`
	IDs  []string       `json:"ids"`
	KPIs domain.KPIData `json:"kpis"`
}

// Subscriber is invoked after every applied event or tick that changed any
// record. Callbacks run outside the engine lock and must not block for long.
type Subscriber func(Change)

// Config carries the engine tunables.
type Config struct {
	// HistoryRetention bounds the completed-history length; the oldest
	// completion is evicted first beyond it.
	HistoryRetention int

	// ExpiryGrace is how far past its deadline an auction must be before a
	// tick expires it locally. It is the tolerance window that lets a late
	// feed-signaled terminal win over local inference.
	ExpiryGrace time.Duration
}

// Engine owns the keyed auction store and the bounded completed history.
type Engine struct {
	mu       sync.RWMutex
	active   map[string]*domain.Auction
	order    []string            // insertion order of the active set
	history  []domain.Auction    // most recent first
	terminal map[string]struct{} // every ID that ever went terminal
	kpis     domain.KPIData

	retention int
	grace     time.Duration

	subMu sync.RWMutex
	subs  []Subscriber

	logger *slog.Logger
}

// New creates an empty engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	retention := cfg.HistoryRetention
	if retention <= 0 {
		retention = 10
	}
	return &Engine{
		active:    make(map[string]*domain.Auction),
		terminal:  make(map[string]struct{}),
		retention: retention,
		grace:     cfg.ExpiryGrace,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// Subscribe registers a change subscriber.
func (e *Engine) Subscribe(fn Subscriber) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs = append(e.subs, fn)
}

// Run drains the feed intake channel until ctx is cancelled. It is the only
// consumer of the channel, so feed events apply in delivery order.
func (e *Engine) Run(ctx context.Context, events <-chan domain.FeedEvent) error {
	e.logger.InfoContext(ctx, "engine started")
	defer e.logger.Info("engine stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case domain.SnapshotEvent:
				e.ApplySnapshot(msg.Auctions)
			case domain.DeltaEvent:
				e.ApplyDelta(msg.Auction)
			}
		}
	}
}

// ApplySnapshot replaces the active set with the provided auctions. Any
// previously active auction missing from the snapshot is completed by
// omission and moved to history with its last-known fields.
func (e *Engine) ApplySnapshot(auctions []domain.Auction) {
	now := time.Now()

	e.mu.Lock()
	seen := make(map[string]struct{}, len(auctions))
	var ids []string

	for _, a := range auctions {
		normalize(&a)
		if _, done := e.terminal[a.ID]; done {
			continue
		}
		seen[a.ID] = struct{}{}
		ids = append(ids, a.ID)
		if a.Status.Terminal() {
			e.upsertLocked(a)
			e.completeLocked(a.ID, a.Status, now)
			continue
		}
		e.upsertLocked(a)
	}

	// Completed by omission: active auctions the snapshot no longer carries.
	for _, id := range append([]string(nil), e.order...) {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
			e.completeLocked(id, domain.StatusCompleted, now)
		}
	}

	e.recomputeLocked()
	change := Change{Kind: ChangeSnapshot, IDs: ids, KPIs: e.kpis}
	e.mu.Unlock()

	e.notify(change)
}

// ApplyDelta upserts a single auction by ID. A terminal status on the event
// moves the record to history immediately. Deltas for IDs that already went
// terminal are no-ops: the first terminal transition sticks.
func (e *Engine) ApplyDelta(a domain.Auction) {
	normalize(&a)
	now := time.Now()

	e.mu.Lock()
	if _, done := e.terminal[a.ID]; done {
		e.mu.Unlock()
		return
	}

	e.upsertLocked(a)
	if a.Status.Terminal() {
		e.completeLocked(a.ID, a.Status, now)
	}

	e.recomputeLocked()
	change := Change{Kind: ChangeDelta, IDs: []string{a.ID}, KPIs: e.kpis}
	e.mu.Unlock()

	e.notify(change)
}

// Tick expires every active auction whose deadline passed at least the grace
// window before now. It is the only path that creates history entries without
// an explicit terminal feed event, and it is idempotent: a second tick with
// the same now observes no active overdue auctions and does nothing.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	var expired []string
	for _, id := range append([]string(nil), e.order...) {
		a := e.active[id]
		if a != nil && !now.Before(a.ExpiresAt.Add(e.grace)) {
			expired = append(expired, id)
			e.completeLocked(id, domain.StatusExpired, now)
		}
	}
	if len(expired) == 0 {
		e.mu.Unlock()
		return
	}

	e.recomputeLocked()
	change := Change{Kind: ChangeExpiry, IDs: expired, KPIs: e.kpis}
	e.mu.Unlock()

	e.logger.Debug("auctions expired locally", slog.Int("count", len(expired)))
	e.notify(change)
}

// ActiveAuctions returns the active set in insertion order.
func (e *Engine) ActiveAuctions() []domain.Auction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Auction, 0, len(e.order))
	for _, id := range e.order {
		if a := e.active[id]; a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// History returns the completed history, most recent first.
func (e *Engine) History() []domain.Auction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Auction(nil), e.history...)
}

// KPIs returns the aggregates derived from the current store.
func (e *Engine) KPIs() domain.KPIData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kpis
}

// upsertLocked inserts or merges one auction record. Fields are last-write-
// wins; a lower incoming TopBid is accepted without complaint since the feed
// contract does not promise monotonicity.
func (e *Engine) upsertLocked(a domain.Auction) {
	if cur, ok := e.active[a.ID]; ok {
		status := cur.Status
		*cur = a
		cur.Status = status
		return
	}
	cp := a
	cp.Status = domain.StatusActive
	e.active[a.ID] = &cp
	e.order = append(e.order, a.ID)
}

// completeLocked moves an active record to history with the given terminal
// status. Unknown or already-terminal IDs are no-ops.
func (e *Engine) completeLocked(id string, status domain.Status, now time.Time) {
	a, ok := e.active[id]
	if !ok {
		return
	}
	a.Status = status
	a.CompletedAt = now

	delete(e.active, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.terminal[id] = struct{}{}

	e.history = append([]domain.Auction{*a}, e.history...)
	if len(e.history) > e.retention {
		e.history = e.history[:e.retention]
	}
}

func (e *Engine) recomputeLocked() {
	active := make([]domain.Auction, 0, len(e.order))
	for _, id := range e.order {
		active = append(active, *e.active[id])
	}
	e.kpis = ComputeKPIs(active, e.history)
}

func (e *Engine) notify(change Change) {
	e.subMu.RLock()
	subs := append([]Subscriber(nil), e.subs...)
	e.subMu.RUnlock()
	for _, fn := range subs {
		fn(change)
	}
}

// normalize fills feed defaults: records arriving without a status are live.
func normalize(a *domain.Auction) {
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
}
