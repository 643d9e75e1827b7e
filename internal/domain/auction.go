// Package domain defines the core entities of the auction dashboard: live
// auctions, derived KPIs, ledger figures, and capital-commitment intents.
// It also declares the interfaces implemented by the infrastructure layers
// (signal bus, ledger access) so business logic depends only on this package.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auction. Completed and Expired are
// terminal: once reached, the record never transitions again.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Auction is one time-bounded execution opportunity tracked by the engine.
// ID is the feed's bundle ID and is unique for the engine's lifetime.
type Auction struct {
	ID        string          `json:"bundle_id"`
	Label     string          `json:"opportunity"`
	TopBid    decimal.Decimal `json:"top_bid"`
	Leader    string          `json:"leading_searcher"`
	ExpiresAt time.Time       `json:"expires_at"`
	Status    Status          `json:"status"`

	// Display attributes carried through from the feed; no engine
	// invariant depends on them.
	Volume  decimal.Decimal `json:"volume,omitempty"`
	FeeRate decimal.Decimal `json:"fee_rate,omitempty"`

	// CompletedAt is set when the auction reaches a terminal status and
	// orders the completed history (most recent first).
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// FeedEvent is the tagged union of decoded feed messages. The two concrete
// shapes are SnapshotEvent and DeltaEvent; consumers switch exhaustively.
type FeedEvent interface {
	feedEvent()
}

// SnapshotEvent carries the feed's full authoritative active set. Applying it
// replaces the active partition; auctions absent from the payload are
// completed by omission.
type SnapshotEvent struct {
	Auctions []Auction
}

// DeltaEvent carries a single-auction upsert. A terminal Status on the
// payload is authoritative and moves the record to history.
type DeltaEvent struct {
	Auction Auction
}

func (SnapshotEvent) feedEvent() {}
func (DeltaEvent) feedEvent()    {}

// FeedStatus describes the feed connection for display purposes only;
// correctness never depends on it.
type FeedStatus string

const (
	FeedConnecting FeedStatus = "connecting"
	FeedOpen       FeedStatus = "open"
	FeedClosed     FeedStatus = "closed"
)
