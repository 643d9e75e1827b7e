package engine

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeKPIs derives the display aggregates from the current store. It is a
// pure function: same active set and history in, same aggregates out.
func ComputeKPIs(active, history []domain.Auction) domain.KPIData {
	kpis := domain.KPIData{ActiveCount: len(active)}

	var feeSum decimal.Decimal
	feeCount := 0
	for _, a := range active {
		kpis.TotalVolume = kpis.TotalVolume.Add(a.Volume)
		kpis.TopBidSum = kpis.TopBidSum.Add(a.TopBid)
		if a.FeeRate.IsPositive() {
			feeSum = feeSum.Add(a.FeeRate)
			feeCount++
		}
	}
	if feeCount > 0 {
		kpis.AvgFeeRate = feeSum.Div(decimal.NewFromInt(int64(feeCount)))
	}

	completed := 0
	for _, a := range history {
		kpis.TotalVolume = kpis.TotalVolume.Add(a.Volume)
		if a.Status == domain.StatusCompleted {
			completed++
		}
	}
	if len(history) > 0 {
		kpis.SuccessRate = decimal.NewFromInt(int64(completed)).
			Div(decimal.NewFromInt(int64(len(history)))).
			Mul(hundred)
	}

	return kpis
}
