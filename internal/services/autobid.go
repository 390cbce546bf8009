package services

import (
	"math"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/utils"
)

// BidOutcome is the result of proxy resolution: the price and leader the
// auction settles at, plus the ordered system bids to persist alongside
// the originating bid in the same transaction.
type BidOutcome struct {
	FinalAmount float64
	LeaderID    string
	Synthesized []*domain.Bid
}

type competitor struct {
	bidderID string
	max      float64
	placedAt time.Time
}

// ResolveAutoBids plays out the proxy-bid competition triggered by a newly
// admitted bid. Each round the strongest outstanding ceiling (ties go to
// the earliest-placed proxy) outbids the current leader at
// min(ceiling, current+increment); the displaced leader's own ceiling, if
// it still has headroom, rejoins the pool. A ceiling below the next
// required amount is exhausted and never reconsidered, so the loop
// terminates with a strictly increasing price trail.
func ResolveAutoBids(auction *domain.Auction, origin *domain.Bid, proxies []*domain.ProxyBid, now time.Time) *BidOutcome {
	leader := competitor{
		bidderID: origin.BidderID,
		max:      origin.Amount,
		placedAt: origin.CreatedAt,
	}
	if origin.IsAutoBid {
		leader.max = origin.MaxAutoBid
	}
	current := origin.Amount

	pool := make([]*domain.ProxyBid, 0, len(proxies))
	for _, p := range proxies {
		if p.BidderID != origin.BidderID {
			pool = append(pool, p)
		}
	}

	var synthesized []*domain.Bid
	for {
		idx := -1
		for i, p := range pool {
			if p.BidderID == leader.bidderID {
				continue
			}
			if p.MaxAutoBid < current+auction.BidIncrement {
				continue // exhausted this round
			}
			if idx == -1 || p.MaxAutoBid > pool[idx].MaxAutoBid ||
				(p.MaxAutoBid == pool[idx].MaxAutoBid && p.PlacedAt.Before(pool[idx].PlacedAt)) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}

		challenger := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		// Tied ceilings go to the earlier proxy: the leader rises to the
		// shared maximum and the challenger is exhausted without ever
		// holding the lead.
		if challenger.MaxAutoBid == leader.max && leader.placedAt.Before(challenger.PlacedAt) {
			if leader.max > current {
				synthesized = append(synthesized, &domain.Bid{
					ID:         utils.GenerateID("bid"),
					AuctionID:  auction.ID,
					BidderID:   leader.bidderID,
					Amount:     leader.max,
					IsAutoBid:  true,
					MaxAutoBid: leader.max,
					CreatedAt:  now,
				})
				current = leader.max
			}
			continue
		}

		amount := math.Min(challenger.MaxAutoBid, current+auction.BidIncrement)

		// The displaced leader keeps competing through its own ceiling.
		if leader.max > current {
			pool = append(pool, &domain.ProxyBid{
				BidderID:   leader.bidderID,
				MaxAutoBid: leader.max,
				PlacedAt:   leader.placedAt,
			})
		}

		synthesized = append(synthesized, &domain.Bid{
			ID:         utils.GenerateID("bid"),
			AuctionID:  auction.ID,
			BidderID:   challenger.BidderID,
			Amount:     amount,
			IsAutoBid:  true,
			MaxAutoBid: challenger.MaxAutoBid,
			CreatedAt:  now,
		})

		leader = competitor{
			bidderID: challenger.BidderID,
			max:      challenger.MaxAutoBid,
			placedAt: challenger.PlacedAt,
		}
		current = amount
	}

	return &BidOutcome{
		FinalAmount: current,
		LeaderID:    leader.bidderID,
		Synthesized: synthesized,
	}
}
