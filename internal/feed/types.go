package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// Inbound message types. AUCTION_UPDATE is the legacy alias some feed
// deployments still emit for a full-array snapshot.
const (
	msgSnapshot      = "SNAPSHOT"
	msgDelta         = "DELTA"
	msgAuctionUpdate = "AUCTION_UPDATE"
)

// envelope is the outer shape of every feed message. Unknown types are
// ignored for forward compatibility.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// wireAuction is the feed's auction shape. TopBid and volume figures arrive
// as JSON numbers or quoted decimal strings; decimal.Decimal accepts both.
// EndTime is a millisecond epoch.
type wireAuction struct {
	BundleID        string          `json:"bundleId"`
	Opportunity     string          `json:"opportunity"`
	TopBid          decimal.Decimal `json:"topBid"`
	LeadingSearcher string          `json:"leadingSearcher"`
	EndTime         int64           `json:"endTime"`
	Status          string          `json:"status"`
	Volume          decimal.Decimal `json:"volume"`
	GasPrice        decimal.Decimal `json:"gasPrice"`
}

func (w wireAuction) toDomain() (domain.Auction, error) {
	if w.BundleID == "" {
		return domain.Auction{}, fmt.Errorf("missing bundleId: %w", domain.ErrFeedDecode)
	}
	status := domain.Status(w.Status)
	switch status {
	case "", domain.StatusActive:
		status = domain.StatusActive
	case domain.StatusCompleted, domain.StatusExpired:
	default:
		return domain.Auction{}, fmt.Errorf("unknown status %q: %w", w.Status, domain.ErrFeedDecode)
	}
	return domain.Auction{
		ID:        w.BundleID,
		Label:     w.Opportunity,
		TopBid:    w.TopBid,
		Leader:    w.LeadingSearcher,
		ExpiresAt: time.UnixMilli(w.EndTime),
		Status:    status,
		Volume:    w.Volume,
		FeeRate:   w.GasPrice,
	}, nil
}

// decodeEvent parses one raw feed message into a domain event. It returns
// (nil, nil) for unknown message types, which callers skip silently, and a
// domain.ErrFeedDecode-wrapped error for malformed payloads, which callers
// log and drop.
func decodeEvent(raw []byte) (domain.FeedEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %v: %w", err, domain.ErrFeedDecode)
	}

	switch env.Type {
	case msgSnapshot, msgAuctionUpdate:
		var wires []wireAuction
		if err := json.Unmarshal(env.Payload, &wires); err != nil {
			return nil, fmt.Errorf("snapshot payload: %v: %w", err, domain.ErrFeedDecode)
		}
		auctions := make([]domain.Auction, 0, len(wires))
		for _, w := range wires {
			a, err := w.toDomain()
			if err != nil {
				return nil, err
			}
			auctions = append(auctions, a)
		}
		return domain.SnapshotEvent{Auctions: auctions}, nil

	case msgDelta:
		var w wireAuction
		if err := json.Unmarshal(env.Payload, &w); err != nil {
			return nil, fmt.Errorf("delta payload: %v: %w", err, domain.ErrFeedDecode)
		}
		a, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		return domain.DeltaEvent{Auction: a}, nil

	default:
		return nil, nil
	}
}
