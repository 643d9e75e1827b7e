// Package orchestrator sequences capital-commitment operations against the
// ledger: approve, deposit, withdraw. It owns the per-intent state machine,
// serializes submissions, gates deposits on the cached allowance, and keeps
// the ledger read cache honest by invalidating it instead of ever adjusting
// a balance locally.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/notify"
)

// Config holds the orchestrator parameters.
type Config struct {
	// Spender is the vault address approvals are granted to.
	Spender string

	// ConfirmTimeout bounds the wait for transaction confirmation
	// (default 90s). Exceeding it fails the intent with
	// ConfirmationTimeout while the ledger outcome stays unknown.
	ConfirmTimeout time.Duration
}

// Orchestrator runs at most one intent at a time per wallet: a submission
// while another intent is in flight is rejected, not queued, to avoid nonce
// and ordering hazards against the ledger.
type Orchestrator struct {
	cfg     Config
	writer  domain.LedgerWriter
	figures domain.FigureSource
	bus     domain.SignalBus
	notif   *notify.Notifier
	logger  *slog.Logger

	mu      sync.Mutex
	current *domain.TransactionIntent
}

// New creates an orchestrator. bus and notif may be nil.
func New(cfg Config, writer domain.LedgerWriter, figures domain.FigureSource, bus domain.SignalBus, notif *notify.Notifier, logger *slog.Logger) *Orchestrator {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	return &Orchestrator{
		cfg:     cfg,
		writer:  writer,
		figures: figures,
		bus:     bus,
		notif:   notif,
		logger:  logger.With(slog.String("component", "orchestrator")),
	}
}

// Current returns a copy of the in-flight (or most recent) intent, or nil
// when nothing was ever submitted.
func (o *Orchestrator) Current() *domain.TransactionIntent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.Clone()
}

// Submit validates and runs one intent. Synchronous rejections are
// ErrInvalidAmount and ErrIntentInFlight; everything later is surfaced
// through the returned intent's state and error kind.
//
// A Deposit whose cached allowance is unknown or insufficient is downgraded
// to an Approve intent for the same amount: the caller sees the approve step
// and retries the deposit once the refreshed allowance covers it.
func (o *Orchestrator) Submit(ctx context.Context, kind domain.IntentKind, amount *big.Int) (*domain.TransactionIntent, error) {
	intent, err := domain.NewIntent(kind, amount)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.current != nil && o.current.State.InFlight() {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: %s: %w", kind, domain.ErrIntentInFlight)
	}

	if kind == domain.KindDeposit && !o.allowanceCovers(amount) {
		intent, err = domain.NewIntent(domain.KindApprove, amount)
		if err != nil {
			o.mu.Unlock()
			return nil, err
		}
		o.logger.InfoContext(ctx, "insufficient allowance, submitting approve first",
			slog.String("amount", amount.String()),
		)
	}

	o.current = intent
	o.transitionLocked(ctx, intent, domain.IntentSubmitting, nil)
	o.mu.Unlock()

	txRef, err := o.write(ctx, intent)
	if err != nil {
		o.mu.Lock()
		o.transitionLocked(ctx, intent, domain.IntentFailed, err)
		o.mu.Unlock()
		// Nothing reached the ledger, so the cache needs no invalidation.
		return intent.Clone(), err
	}

	o.mu.Lock()
	intent.TxRef = txRef
	o.transitionLocked(ctx, intent, domain.IntentAwaitingConf, nil)
	o.mu.Unlock()

	// The confirmation wait deliberately detaches from the request context:
	// an in-flight ledger write is never cancelled just because the caller
	// stopped observing it, and the cache must still re-sync when it lands.
	go o.awaitConfirmation(context.WithoutCancel(ctx), intent)

	return intent.Clone(), nil
}

func (o *Orchestrator) allowanceCovers(amount *big.Int) bool {
	fig, ok := o.figures.Get(domain.FigureAllowance)
	return ok && fig.Value.Cmp(amount) >= 0
}

func (o *Orchestrator) write(ctx context.Context, intent *domain.TransactionIntent) (string, error) {
	switch intent.Kind {
	case domain.KindApprove:
		return o.writer.Approve(ctx, o.cfg.Spender, intent.Amount)
	case domain.KindDeposit:
		return o.writer.Deposit(ctx, intent.Amount)
	case domain.KindWithdraw:
		return o.writer.Withdraw(ctx, intent.Amount)
	default:
		return "", fmt.Errorf("orchestrator: unknown intent kind %q: %w", intent.Kind, domain.ErrLedgerWrite)
	}
}

func (o *Orchestrator) awaitConfirmation(ctx context.Context, intent *domain.TransactionIntent) {
	confirmCtx, cancel := context.WithTimeout(ctx, o.cfg.ConfirmTimeout)
	defer cancel()

	err := o.writer.WaitConfirmed(confirmCtx, intent.TxRef)

	o.mu.Lock()
	if err != nil {
		o.transitionLocked(ctx, intent, domain.IntentFailed, err)
	} else {
		o.transitionLocked(ctx, intent, domain.IntentConfirmed, nil)
	}
	o.mu.Unlock()

	// The tx reached the ledger; whatever happened to it, cached figures
	// may no longer match ledger truth. On timeout in particular the
	// outcome is unknown, and a re-fetch beats stale optimism.
	o.figures.Invalidate(affectedFigures(intent.Kind)...)
}

// affectedFigures maps an intent kind to the cached figures its confirmation
// can move.
func affectedFigures(kind domain.IntentKind) []domain.FigureKey {
	if kind == domain.KindApprove {
		return []domain.FigureKey{domain.FigureAllowance}
	}
	return []domain.FigureKey{domain.FigureBalance, domain.FigurePoolTotal}
}

// transitionLocked advances the state machine, publishes the event, and
// notifies on terminal states. Caller holds o.mu.
func (o *Orchestrator) transitionLocked(ctx context.Context, intent *domain.TransactionIntent, state domain.IntentState, cause error) {
	intent.State = state
	intent.UpdatedAt = time.Now().UTC()
	if cause != nil {
		intent.Err = errKind(cause)
	}

	o.logger.InfoContext(ctx, "intent transition",
		slog.String("id", intent.ID),
		slog.String("kind", string(intent.Kind)),
		slog.String("state", string(state)),
		slog.String("error", intent.Err),
	)

	if o.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":  "intent",
			"id":     intent.ID,
			"kind":   intent.Kind,
			"state":  state,
			"amount": intent.Amount.String(),
			"tx_ref": intent.TxRef,
			"error":  intent.Err,
		})
		_ = o.bus.Publish(ctx, "intents", payload)
	}

	if o.notif == nil {
		return
	}
	switch state {
	case domain.IntentConfirmed:
		_ = o.notif.Notify(ctx, notify.EventTxConfirmed,
			fmt.Sprintf("%s confirmed", intent.Kind),
			fmt.Sprintf("amount %s, tx %s", intent.Amount, intent.TxRef),
		)
	case domain.IntentFailed:
		_ = o.notif.Notify(ctx, notify.EventTxFailed,
			fmt.Sprintf("%s failed", intent.Kind),
			fmt.Sprintf("amount %s: %s", intent.Amount, intent.Err),
		)
	}
}

// errKind reduces an error chain to the user-facing taxonomy.
func errKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfirmationTimeout):
		return "confirmation_timeout"
	case errors.Is(err, domain.ErrLedgerWrite):
		return "ledger_write_error"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "ledger_write_error"
	}
}
