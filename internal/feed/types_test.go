package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

func TestDecodeEvent_Delta(t *testing.T) {
	raw := []byte(`{"type":"DELTA","payload":{
		"bundleId":"a1","opportunity":"MEV Bundle #2847","topBid":"0.8920",
		"leadingSearcher":"0x9f6e5d4c3b2a1908f7e6d5c4b3a2918e7f6d5c4b",
		"endTime":1756400000000,"status":"active","volume":340000,"gasPrice":30}}`)

	ev, err := decodeEvent(raw)
	require.NoError(t, err)

	delta, ok := ev.(domain.DeltaEvent)
	require.True(t, ok)
	a := delta.Auction
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, "MEV Bundle #2847", a.Label)
	assert.True(t, a.TopBid.Equal(decimal.NewFromFloat(0.892)), "quoted decimal accepted")
	assert.Equal(t, domain.StatusActive, a.Status)
	assert.Equal(t, time.UnixMilli(1756400000000), a.ExpiresAt)
	assert.True(t, a.Volume.Equal(decimal.NewFromInt(340000)), "bare number accepted")
}

func TestDecodeEvent_Snapshot(t *testing.T) {
	raw := []byte(`{"type":"SNAPSHOT","payload":[
		{"bundleId":"a1","topBid":0.1,"endTime":1},
		{"bundleId":"a2","topBid":0.2,"endTime":2,"status":"completed"}]}`)

	ev, err := decodeEvent(raw)
	require.NoError(t, err)

	snap, ok := ev.(domain.SnapshotEvent)
	require.True(t, ok)
	require.Len(t, snap.Auctions, 2)
	assert.Equal(t, domain.StatusActive, snap.Auctions[0].Status, "missing status defaults to active")
	assert.Equal(t, domain.StatusCompleted, snap.Auctions[1].Status)
}

func TestDecodeEvent_AuctionUpdateAlias(t *testing.T) {
	raw := []byte(`{"type":"AUCTION_UPDATE","payload":[
		{"bundleId":"a1","topBid":"4.2133","leadingSearcher":"0xabc","endTime":99}]}`)

	ev, err := decodeEvent(raw)
	require.NoError(t, err)
	snap, ok := ev.(domain.SnapshotEvent)
	require.True(t, ok)
	require.Len(t, snap.Auctions, 1)
	assert.Equal(t, "a1", snap.Auctions[0].ID)
}

func TestDecodeEvent_UnknownTypeIgnored(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"HEARTBEAT","payload":{}}`))
	assert.NoError(t, err)
	assert.Nil(t, ev, "forward compatible: unknown types are skipped, not errors")
}

func TestDecodeEvent_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte(`{{{`),
		"payload shape":   []byte(`{"type":"DELTA","payload":[1,2,3]}`),
		"missing id":      []byte(`{"type":"DELTA","payload":{"topBid":1,"endTime":1}}`),
		"bogus status":    []byte(`{"type":"DELTA","payload":{"bundleId":"a1","status":"paused"}}`),
		"snapshot object": []byte(`{"type":"SNAPSHOT","payload":{"bundleId":"a1"}}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := decodeEvent(raw)
			assert.Nil(t, ev)
			assert.True(t, errors.Is(err, domain.ErrFeedDecode))
		})
	}
}
