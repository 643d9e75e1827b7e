package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// fakeWriter scripts the ledger write path.
type fakeWriter struct {
	mu         sync.Mutex
	writeErr   error
	confirmErr error
	hold       chan struct{} // when set, WaitConfirmed blocks until closed
	writes     []domain.IntentKind
}

func (w *fakeWriter) record(kind domain.IntentKind) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return "", w.writeErr
	}
	w.writes = append(w.writes, kind)
	return fmt.Sprintf("0xtx%d", len(w.writes)), nil
}

func (w *fakeWriter) Approve(ctx context.Context, spender string, amount *big.Int) (string, error) {
	return w.record(domain.KindApprove)
}

func (w *fakeWriter) Deposit(ctx context.Context, amount *big.Int) (string, error) {
	return w.record(domain.KindDeposit)
}

func (w *fakeWriter) Withdraw(ctx context.Context, amount *big.Int) (string, error) {
	return w.record(domain.KindWithdraw)
}

func (w *fakeWriter) WaitConfirmed(ctx context.Context, txRef string) error {
	w.mu.Lock()
	hold := w.hold
	err := w.confirmErr
	w.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return fmt.Errorf("tx %s: %w", txRef, domain.ErrConfirmationTimeout)
		}
	}
	return err
}

// fakeFigures serves a scripted allowance and records invalidations.
type fakeFigures struct {
	mu          sync.Mutex
	allowance   *big.Int // nil means unknown
	invalidated []domain.FigureKey
}

func (f *fakeFigures) Get(key domain.FigureKey) (domain.Figure, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == domain.FigureAllowance && f.allowance != nil {
		return domain.Figure{Value: new(big.Int).Set(f.allowance), FetchedAt: time.Now()}, true
	}
	return domain.Figure{}, false
}

func (f *fakeFigures) Invalidate(keys ...domain.FigureKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, keys...)
}

func (f *fakeFigures) invalidatedKeys() []domain.FigureKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FigureKey(nil), f.invalidated...)
}

func newTestOrchestrator(writer *fakeWriter, figures *fakeFigures) *Orchestrator {
	return New(Config{
		Spender:        "0x2345678901234567890123456789012345678901",
		ConfirmTimeout: 200 * time.Millisecond,
	}, writer, figures, nil, nil, slog.Default())
}

// waitForState polls until the current intent reaches the wanted state.
func waitForState(t *testing.T, o *Orchestrator, want domain.IntentState) *domain.TransactionIntent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cur := o.Current(); cur != nil && cur.State == want {
			return cur
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("intent never reached state %s (now %+v)", want, o.Current())
	return nil
}

func TestSubmit_InvalidAmountRejectedSynchronously(t *testing.T) {
	o := newTestOrchestrator(&fakeWriter{}, &fakeFigures{})

	for name, amount := range map[string]*big.Int{
		"nil":      nil,
		"zero":     big.NewInt(0),
		"negative": big.NewInt(-5),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := o.Submit(context.Background(), domain.KindDeposit, amount)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
			assert.Nil(t, o.Current(), "rejected amounts never enter the state machine")
		})
	}
}

func TestSubmit_SecondIntentRejectedWhileInFlight(t *testing.T) {
	writer := &fakeWriter{hold: make(chan struct{})}
	figures := &fakeFigures{allowance: big.NewInt(1000)}
	o := newTestOrchestrator(writer, figures)

	first, err := o.Submit(context.Background(), domain.KindDeposit, big.NewInt(100))
	require.NoError(t, err)
	waitForState(t, o, domain.IntentAwaitingConf)

	_, err = o.Submit(context.Background(), domain.KindWithdraw, big.NewInt(50))
	assert.ErrorIs(t, err, domain.ErrIntentInFlight)

	cur := o.Current()
	assert.Equal(t, first.ID, cur.ID, "the rejected submission did not disturb the in-flight intent")
	assert.Equal(t, domain.IntentAwaitingConf, cur.State)

	close(writer.hold)
	waitForState(t, o, domain.IntentConfirmed)
}

func TestSubmit_AllowanceGateForcesApprove(t *testing.T) {
	cases := map[string]*fakeFigures{
		"unknown allowance":      {},
		"insufficient allowance": {allowance: big.NewInt(40)},
	}
	for name, figures := range cases {
		t.Run(name, func(t *testing.T) {
			writer := &fakeWriter{}
			o := newTestOrchestrator(writer, figures)

			intent, err := o.Submit(context.Background(), domain.KindDeposit, big.NewInt(100))
			require.NoError(t, err)
			assert.Equal(t, domain.KindApprove, intent.Kind,
				"the visible step is approve, never deposit, until allowance covers the amount")

			waitForState(t, o, domain.IntentConfirmed)
			assert.Equal(t, []domain.IntentKind{domain.KindApprove}, writer.writes)
		})
	}
}

func TestSubmit_SufficientAllowanceDeposits(t *testing.T) {
	writer := &fakeWriter{}
	figures := &fakeFigures{allowance: big.NewInt(100)}
	o := newTestOrchestrator(writer, figures)

	intent, err := o.Submit(context.Background(), domain.KindDeposit, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.KindDeposit, intent.Kind)

	waitForState(t, o, domain.IntentConfirmed)
	assert.Equal(t, []domain.IntentKind{domain.KindDeposit}, writer.writes)
}

func TestSubmit_WithdrawNeedsNoAllowance(t *testing.T) {
	writer := &fakeWriter{}
	o := newTestOrchestrator(writer, &fakeFigures{})

	intent, err := o.Submit(context.Background(), domain.KindWithdraw, big.NewInt(25))
	require.NoError(t, err)
	assert.Equal(t, domain.KindWithdraw, intent.Kind)
	waitForState(t, o, domain.IntentConfirmed)
}

func TestSubmit_WriteFailureSkipsInvalidation(t *testing.T) {
	writer := &fakeWriter{writeErr: fmt.Errorf("rpc down: %w", domain.ErrLedgerWrite)}
	figures := &fakeFigures{allowance: big.NewInt(1000)}
	o := newTestOrchestrator(writer, figures)

	intent, err := o.Submit(context.Background(), domain.KindDeposit, big.NewInt(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLedgerWrite))
	assert.Equal(t, domain.IntentFailed, intent.State)
	assert.Equal(t, "ledger_write_error", intent.Err)

	assert.Empty(t, figures.invalidatedKeys(),
		"nothing reached the ledger, so cached figures still hold")

	// The slot frees up for a retry.
	_, err = o.Submit(context.Background(), domain.KindWithdraw, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrLedgerWrite)
}

func TestConfirmed_InvalidatesAffectedFigures(t *testing.T) {
	writer := &fakeWriter{}
	figures := &fakeFigures{allowance: big.NewInt(1000)}
	o := newTestOrchestrator(writer, figures)

	_, err := o.Submit(context.Background(), domain.KindDeposit, big.NewInt(100))
	require.NoError(t, err)
	waitForState(t, o, domain.IntentConfirmed)

	assert.ElementsMatch(t,
		[]domain.FigureKey{domain.FigureBalance, domain.FigurePoolTotal},
		figures.invalidatedKeys(),
		"deposit moves balance and pool total, not allowance")
}

func TestConfirmed_ApproveInvalidatesAllowance(t *testing.T) {
	writer := &fakeWriter{}
	figures := &fakeFigures{}
	o := newTestOrchestrator(writer, figures)

	_, err := o.Submit(context.Background(), domain.KindApprove, big.NewInt(100))
	require.NoError(t, err)
	waitForState(t, o, domain.IntentConfirmed)

	assert.Equal(t, []domain.FigureKey{domain.FigureAllowance}, figures.invalidatedKeys())
}

func TestConfirmationTimeout_FailsAndStillInvalidates(t *testing.T) {
	writer := &fakeWriter{hold: make(chan struct{})} // never closed
	figures := &fakeFigures{}
	o := newTestOrchestrator(writer, figures)

	_, err := o.Submit(context.Background(), domain.KindWithdraw, big.NewInt(10))
	require.NoError(t, err)

	cur := waitForState(t, o, domain.IntentFailed)
	assert.Equal(t, "confirmation_timeout", cur.Err)

	assert.ElementsMatch(t,
		[]domain.FigureKey{domain.FigureBalance, domain.FigurePoolTotal},
		figures.invalidatedKeys(),
		"outcome is unknown, so a re-fetch beats stale optimism")
}

func TestSubmit_CallerCancellationDoesNotAbandonConfirmation(t *testing.T) {
	writer := &fakeWriter{hold: make(chan struct{})}
	figures := &fakeFigures{}
	o := newTestOrchestrator(writer, figures)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := o.Submit(ctx, domain.KindWithdraw, big.NewInt(10))
	require.NoError(t, err)

	// The UI goes away; the ledger write does not.
	cancel()
	close(writer.hold)

	waitForState(t, o, domain.IntentConfirmed)
	assert.NotEmpty(t, figures.invalidatedKeys(),
		"the cache still re-syncs when the abandoned write resolves")
}
