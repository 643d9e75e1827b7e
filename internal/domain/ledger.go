package domain

import (
	"context"
	"math/big"
	"time"
)

// FigureKey names one cached ledger figure.
type FigureKey string

const (
	FigureBalance   FigureKey = "balance"
	FigureAllowance FigureKey = "allowance"
	FigurePoolTotal FigureKey = "pool_total"
)

// AllFigures lists every figure key the read cache tracks.
var AllFigures = []FigureKey{FigureBalance, FigureAllowance, FigurePoolTotal}

// Figure is one cached ledger value with its fetch time. A figure older than
// the configured staleness bound must be treated as unknown, never as zero.
type Figure struct {
	Value     *big.Int  `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// LedgerReader reads figures from the external ledger. All reads are
// side-effect-free and return exact integers in the ledger's smallest unit.
type LedgerReader interface {
	ReadBalance(ctx context.Context, user string) (*big.Int, error)
	ReadAllowance(ctx context.Context, owner, spender string) (*big.Int, error)
	ReadPoolTotal(ctx context.Context) (*big.Int, error)
}

// LedgerWriter submits write operations to the external ledger. Each write
// returns an opaque transaction reference before confirmation; WaitConfirmed
// blocks until the referenced transaction is final or ctx expires.
type LedgerWriter interface {
	Approve(ctx context.Context, spender string, amount *big.Int) (txRef string, err error)
	Deposit(ctx context.Context, amount *big.Int) (txRef string, err error)
	Withdraw(ctx context.Context, amount *big.Int) (txRef string, err error)
	WaitConfirmed(ctx context.Context, txRef string) error
}

// FigureSource is the read side of the ledger cache consumed by the
// orchestrator and the API. Get returns ok=false for unknown or stale
// figures. Invalidate marks figures stale and forces a fresh fetch that
// bypasses in-flight coalescing.
type FigureSource interface {
	Get(key FigureKey) (Figure, bool)
	Invalidate(keys ...FigureKey)
}

// SignalBus provides pub/sub fan-out of engine, cache, and orchestrator
// events toward the presentation layer.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
