package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/engine"
)

// AuctionHandler serves the reconciled auction views.
type AuctionHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler backed by the given engine.
func NewAuctionHandler(eng *engine.Engine, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{engine: eng, logger: logHandler(logger, "auctions")}
}

// ListActive responds with every active auction in stable insertion order.
// GET /api/auctions
func (h *AuctionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	auctions := h.engine.ActiveAuctions()
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": auctions,
		"count":    len(auctions),
	})
}

// ListHistory responds with completed auctions, most recent first.
// GET /api/auctions/history
func (h *AuctionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	history := h.engine.History()
	if history == nil {
		history = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": history,
		"count":    len(history),
	})
}

// GetKPIs responds with the aggregate dashboard metrics.
// GET /api/kpis
func (h *AuctionHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.KPIs())
}
