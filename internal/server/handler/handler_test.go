package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/engine"
	"github.com/alanyoungcy/auctiondash/internal/orchestrator"
)

type stubFigures struct {
	figs map[domain.FigureKey]domain.Figure
}

func (s *stubFigures) Get(key domain.FigureKey) (domain.Figure, bool) {
	fig, ok := s.figs[key]
	return fig, ok
}

func (s *stubFigures) Invalidate(...domain.FigureKey) {}

type stubWriter struct{}

func (stubWriter) Approve(context.Context, string, *big.Int) (string, error) { return "0xabc", nil }
func (stubWriter) Deposit(context.Context, *big.Int) (string, error)         { return "0xabc", nil }
func (stubWriter) Withdraw(context.Context, *big.Int) (string, error)        { return "0xabc", nil }
func (stubWriter) WaitConfirmed(context.Context, string) error               { return nil }

func TestListActive_EmptyEngine(t *testing.T) {
	eng := engine.New(engine.Config{}, slog.Default())
	h := NewAuctionHandler(eng, slog.Default())

	rec := httptest.NewRecorder()
	h.ListActive(rec, httptest.NewRequest(http.MethodGet, "/api/auctions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Auctions []domain.Auction `json:"auctions"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Auctions, "empty list serializes as [], not null")
	assert.Zero(t, body.Count)
}

func TestListActive_ReturnsInsertionOrder(t *testing.T) {
	eng := engine.New(engine.Config{}, slog.Default())
	for _, id := range []string{"b3", "b1", "b2"} {
		eng.ApplyDelta(domain.Auction{
			ID:        id,
			TopBid:    decimal.NewFromInt(10),
			ExpiresAt: time.Now().Add(time.Minute),
			Status:    domain.StatusActive,
		})
	}

	h := NewAuctionHandler(eng, slog.Default())
	rec := httptest.NewRecorder()
	h.ListActive(rec, httptest.NewRequest(http.MethodGet, "/api/auctions", nil))

	var body struct {
		Auctions []domain.Auction `json:"auctions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Auctions, 3)
	assert.Equal(t, "b3", body.Auctions[0].ID)
	assert.Equal(t, "b1", body.Auctions[1].ID)
	assert.Equal(t, "b2", body.Auctions[2].ID)
}

func TestGetFigures_StaleReportsNullNotZero(t *testing.T) {
	figs := &stubFigures{figs: map[domain.FigureKey]domain.Figure{
		domain.FigureBalance: {Value: big.NewInt(500), FetchedAt: time.Now()},
	}}
	h := NewLiquidityHandler(figs, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.GetFigures(rec, httptest.NewRequest(http.MethodGet, "/api/liquidity", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]struct {
		Value *json.Number `json:"value"`
		Fresh bool         `json:"fresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.NotNil(t, body["balance"].Value)
	assert.Equal(t, "500", body["balance"].Value.String())
	assert.True(t, body["balance"].Fresh)

	assert.Nil(t, body["allowance"].Value, "unknown figure is null, never zero")
	assert.False(t, body["allowance"].Fresh)
}

func TestSubmit_MonitorModeDisabled(t *testing.T) {
	h := NewLiquidityHandler(&stubFigures{}, nil, slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/liquidity/deposit",
		strings.NewReader(`{"amount":"100"}`))
	h.Deposit(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmit_ErrorMapping(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{Spender: "0x1"},
		stubWriter{}, &stubFigures{}, nil, nil, slog.Default())
	h := NewLiquidityHandler(&stubFigures{}, orch, slog.Default())

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/liquidity/withdraw",
			strings.NewReader(body))
		h.Withdraw(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, post(`{"amount":"abc"}`).Code, "non-integer amount")
	assert.Equal(t, http.StatusBadRequest, post(`{"amount":"-5"}`).Code, "negative amount")
	assert.Equal(t, http.StatusAccepted, post(`{"amount":"50"}`).Code)
}

func TestGetIntent_NoneYet(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{Spender: "0x1"},
		stubWriter{}, &stubFigures{}, nil, nil, slog.Default())
	h := NewLiquidityHandler(&stubFigures{}, orch, slog.Default())

	rec := httptest.NewRecorder()
	h.GetIntent(rec, httptest.NewRequest(http.MethodGet, "/api/liquidity/intent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
