package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/orchestrator"
)

// LiquidityHandler serves the ledger figure views and the transaction
// submission endpoints. The orchestrator is nil in monitor mode; submission
// endpoints then answer 503.
type LiquidityHandler struct {
	figures domain.FigureSource
	orch    *orchestrator.Orchestrator
	logger  *slog.Logger
}

// NewLiquidityHandler creates a LiquidityHandler. orch may be nil.
func NewLiquidityHandler(figures domain.FigureSource, orch *orchestrator.Orchestrator, logger *slog.Logger) *LiquidityHandler {
	return &LiquidityHandler{
		figures: figures,
		orch:    orch,
		logger:  logHandler(logger, "liquidity"),
	}
}

// figureView is the JSON shape of one cached ledger figure. Value is null
// while the figure is unknown or stale; it is never reported as zero.
type figureView struct {
	Value     *big.Int `json:"value"`
	FetchedAt string   `json:"fetched_at,omitempty"`
	Fresh     bool     `json:"fresh"`
}

// GetFigures responds with the cached balance, allowance, and pool total
// plus their freshness.
// GET /api/liquidity
func (h *LiquidityHandler) GetFigures(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]figureView, len(domain.AllFigures))
	for _, key := range domain.AllFigures {
		fig, fresh := h.figures.Get(key)
		view := figureView{Fresh: fresh}
		if fresh {
			view.Value = fig.Value
		}
		if !fig.FetchedAt.IsZero() {
			view.FetchedAt = fig.FetchedAt.UTC().Format(time.RFC3339)
		}
		out[string(key)] = view
	}
	writeJSON(w, http.StatusOK, out)
}

// GetIntent responds with the in-flight (or most recent) transaction intent.
// GET /api/liquidity/intent
func (h *LiquidityHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "transactions disabled in monitor mode")
		return
	}
	intent := h.orch.Current()
	if intent == nil {
		writeError(w, http.StatusNotFound, "no intent submitted yet")
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// Deposit submits a deposit intent.
// POST /api/liquidity/deposit
func (h *LiquidityHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.KindDeposit)
}

// Withdraw submits a withdrawal intent.
// POST /api/liquidity/withdraw
func (h *LiquidityHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.KindWithdraw)
}

// Approve submits an explicit approval intent.
// POST /api/liquidity/approve
func (h *LiquidityHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.KindApprove)
}

// submitRequest is the JSON body for the submission endpoints. Amount is a
// base-10 integer string in the token's smallest unit.
type submitRequest struct {
	Amount string `json:"amount"`
}

func (h *LiquidityHandler) submit(w http.ResponseWriter, r *http.Request, kind domain.IntentKind) {
	if h.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "transactions disabled in monitor mode")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be a base-10 integer string")
		return
	}

	intent, err := h.orch.Submit(r.Context(), kind, amount)
	if err != nil {
		status := submitErrorStatus(err)
		h.logger.WarnContext(r.Context(), "submission rejected",
			slog.String("kind", string(kind)),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		body := map[string]any{"error": err.Error()}
		if intent != nil {
			body["intent"] = intent
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusAccepted, intent)
}

// submitErrorStatus maps the submission error taxonomy onto HTTP codes.
func submitErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIntentInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLedgerWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
