package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-marketplace/internal/domain"
)

func manualBid(bidder string, amount float64, at time.Time) *domain.Bid {
	return &domain.Bid{
		ID:        "bid-" + bidder,
		AuctionID: "auction-1",
		BidderID:  bidder,
		Amount:    amount,
		CreatedAt: at,
	}
}

func autoBid(bidder string, amount, max float64, at time.Time) *domain.Bid {
	bid := manualBid(bidder, amount, at)
	bid.IsAutoBid = true
	bid.MaxAutoBid = max
	return bid
}

func TestResolveAutoBidsNoProxies(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 110, now), nil, now)

	require.Equal(t, 110.0, outcome.FinalAmount)
	require.Equal(t, "bidder-a", outcome.LeaderID)
	require.Empty(t, outcome.Synthesized)
}

// The worked example: auction at 120 with B holding a proxy up to 150.
// A's manual 130 is countered by one system bid at 140 on B's behalf.
func TestResolveAutoBidsProxyCountersManualBid(t *testing.T) {
	auction := activeAuction()
	auction.CurrentBid = 120
	now := time.Now().UTC()

	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-b", MaxAutoBid: 150, PlacedAt: now.Add(-time.Minute)},
	}

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 130, now), proxies, now)

	require.Equal(t, 140.0, outcome.FinalAmount)
	require.Equal(t, "bidder-b", outcome.LeaderID)
	require.Len(t, outcome.Synthesized, 1)

	synth := outcome.Synthesized[0]
	require.Equal(t, "bidder-b", synth.BidderID)
	require.Equal(t, 140.0, synth.Amount)
	require.True(t, synth.IsAutoBid)
	require.Equal(t, 150.0, synth.MaxAutoBid)
}

func TestResolveAutoBidsWeakProxyIgnored(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	// Ceiling below amount+increment cannot profitably outbid.
	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-b", MaxAutoBid: 115, PlacedAt: now.Add(-time.Minute)},
	}

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 110, now), proxies, now)

	require.Equal(t, 110.0, outcome.FinalAmount)
	require.Equal(t, "bidder-a", outcome.LeaderID)
	require.Empty(t, outcome.Synthesized)
}

func TestResolveAutoBidsOriginCeilingFightsBack(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	// Origin registers up to 200; the outstanding proxy holds 150. The
	// bids alternate in increments until the weaker ceiling is spent.
	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-b", MaxAutoBid: 150, PlacedAt: now.Add(-time.Minute)},
	}

	outcome := ResolveAutoBids(auction, autoBid("bidder-a", 110, 200, now), proxies, now)

	require.Equal(t, 150.0, outcome.FinalAmount)
	require.Equal(t, "bidder-a", outcome.LeaderID)

	// Every synthesized amount strictly increases and no one exceeds
	// their own ceiling.
	prev := 110.0
	for _, synth := range outcome.Synthesized {
		require.Greater(t, synth.Amount, prev)
		require.LessOrEqual(t, synth.Amount, synth.MaxAutoBid)
		prev = synth.Amount
	}
	last := outcome.Synthesized[len(outcome.Synthesized)-1]
	require.Equal(t, "bidder-a", last.BidderID)
	require.Equal(t, 150.0, last.Amount)
}

func TestResolveAutoBidsTiedCeilingsEarliestWins(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-late", MaxAutoBid: 150, PlacedAt: now.Add(-time.Minute)},
		{BidderID: "bidder-early", MaxAutoBid: 150, PlacedAt: now.Add(-time.Hour)},
	}

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 110, now), proxies, now)

	require.Equal(t, "bidder-early", outcome.LeaderID)
	require.Equal(t, 150.0, outcome.FinalAmount)
	for _, synth := range outcome.Synthesized {
		require.LessOrEqual(t, synth.Amount, synth.MaxAutoBid)
	}
}

func TestResolveAutoBidsSkipsOriginsOwnProxy(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	// A stale ceiling from the same bidder must not outbid them.
	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-a", MaxAutoBid: 500, PlacedAt: now.Add(-time.Hour)},
	}

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 110, now), proxies, now)

	require.Equal(t, 110.0, outcome.FinalAmount)
	require.Equal(t, "bidder-a", outcome.LeaderID)
	require.Empty(t, outcome.Synthesized)
}

func TestResolveAutoBidsMultipleProxiesSettleAtSecondCeiling(t *testing.T) {
	auction := activeAuction()
	now := time.Now().UTC()

	proxies := []*domain.ProxyBid{
		{BidderID: "bidder-b", MaxAutoBid: 300, PlacedAt: now.Add(-3 * time.Minute)},
		{BidderID: "bidder-c", MaxAutoBid: 150, PlacedAt: now.Add(-2 * time.Minute)},
		{BidderID: "bidder-d", MaxAutoBid: 130, PlacedAt: now.Add(-time.Minute)},
	}

	outcome := ResolveAutoBids(auction, manualBid("bidder-a", 110, now), proxies, now)

	require.Equal(t, "bidder-b", outcome.LeaderID)
	require.Equal(t, 160.0, outcome.FinalAmount)
	for _, synth := range outcome.Synthesized {
		require.LessOrEqual(t, synth.Amount, synth.MaxAutoBid)
	}
}
