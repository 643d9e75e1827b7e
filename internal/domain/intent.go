package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// IntentKind names the ledger write an intent performs.
type IntentKind string

const (
	KindApprove  IntentKind = "approve"
	KindDeposit  IntentKind = "deposit"
	KindWithdraw IntentKind = "withdraw"
)

// IntentState is the orchestrator's per-intent state machine position.
// Confirmed and Failed are terminal.
type IntentState string

const (
	IntentIdle         IntentState = "idle"
	IntentSubmitting   IntentState = "submitting"
	IntentAwaitingConf IntentState = "awaiting_confirmation"
	IntentConfirmed    IntentState = "confirmed"
	IntentFailed       IntentState = "failed"
)

// InFlight reports whether the state still occupies the orchestrator's
// single in-flight slot.
func (s IntentState) InFlight() bool {
	return s == IntentSubmitting || s == IntentAwaitingConf
}

// TransactionIntent is one orchestrated ledger operation. Amounts are exact
// integers in the ledger's smallest unit; no float ever crosses the ledger
// boundary.
type TransactionIntent struct {
	ID        string      `json:"id"`
	Kind      IntentKind  `json:"kind"`
	Amount    *big.Int    `json:"amount"`
	State     IntentState `json:"state"`
	TxRef     string      `json:"tx_ref,omitempty"`
	Err       string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewIntent validates the amount and constructs an Idle intent. A nil or
// non-positive amount is rejected with ErrInvalidAmount and never enters the
// state machine.
func NewIntent(kind IntentKind, amount *big.Int) (*TransactionIntent, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("intent %s: %w", kind, ErrInvalidAmount)
	}
	now := time.Now().UTC()
	return &TransactionIntent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    new(big.Int).Set(amount),
		State:     IntentIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a deep copy safe to hand to API consumers.
func (i *TransactionIntent) Clone() *TransactionIntent {
	if i == nil {
		return nil
	}
	out := *i
	out.Amount = new(big.Int).Set(i.Amount)
	return &out
}
