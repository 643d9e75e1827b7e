package domain

import "github.com/shopspring/decimal"

// KPIData is the display aggregate derived from engine state. It is a pure
// function of the auction store: recomputing it from the same active set and
// history always yields the same values, and nothing mutates it directly.
type KPIData struct {
	// TotalVolume sums the Volume attribute across active and completed
	// auctions.
	TotalVolume decimal.Decimal `json:"total_volume"`

	// ActiveCount is the number of auctions currently in the active set.
	ActiveCount int `json:"active_auctions"`

	// TopBidSum sums the leading bids of the active set.
	TopBidSum decimal.Decimal `json:"top_bid_sum"`

	// AvgFeeRate is the mean non-zero fee rate across active auctions.
	AvgFeeRate decimal.Decimal `json:"avg_fee_rate"`

	// SuccessRate is the percentage of retained history entries that
	// completed via an explicit feed terminal rather than local expiry.
	SuccessRate decimal.Decimal `json:"success_rate"`
}
