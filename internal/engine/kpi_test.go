package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

func TestComputeKPIs_Empty(t *testing.T) {
	kpis := ComputeKPIs(nil, nil)
	assert.Equal(t, 0, kpis.ActiveCount)
	assert.True(t, kpis.TotalVolume.IsZero())
	assert.True(t, kpis.SuccessRate.IsZero())
	assert.True(t, kpis.AvgFeeRate.IsZero())
}

func TestComputeKPIs_Aggregates(t *testing.T) {
	future := time.Now().Add(time.Minute)

	a1 := makeAuction("a1", 0.25, future)
	a1.Volume = decimal.NewFromInt(125000)
	a1.FeeRate = decimal.NewFromInt(25)

	a2 := makeAuction("a2", 0.75, future)
	a2.Volume = decimal.NewFromInt(340000)
	a2.FeeRate = decimal.NewFromInt(30)

	// No fee rate reported: excluded from the average, counted elsewhere.
	a3 := makeAuction("a3", 1.00, future)

	done := makeAuction("h1", 1.25, future)
	done.Status = domain.StatusCompleted
	done.Volume = decimal.NewFromInt(89000)

	lapsed := makeAuction("h2", 0.10, future)
	lapsed.Status = domain.StatusExpired

	kpis := ComputeKPIs(
		[]domain.Auction{a1, a2, a3},
		[]domain.Auction{done, lapsed},
	)

	assert.Equal(t, 3, kpis.ActiveCount)
	assert.True(t, kpis.TotalVolume.Equal(decimal.NewFromInt(554000)))
	assert.True(t, kpis.TopBidSum.Equal(decimal.NewFromFloat(2.0)))
	assert.True(t, kpis.AvgFeeRate.Equal(decimal.NewFromFloat(27.5)))
	assert.True(t, kpis.SuccessRate.Equal(decimal.NewFromInt(50)),
		"one of two history entries completed via the feed")
}
