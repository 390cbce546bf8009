package services

import (
	"time"

	"auction-marketplace/internal/domain"
)

// ValidateBid is the pure admission check for a candidate bid. Checks run
// in a fixed order and the first failure wins. A bid below the reserve
// price passes validation: the reserve gates final-sale qualification at
// end time, not admission.
func ValidateBid(auction *domain.Auction, candidate *domain.Bid, now time.Time) error {
	if auction.Status != domain.AuctionActive {
		return domain.ErrAuctionNotActive
	}
	if !now.Before(auction.EndTime) {
		return domain.ErrAuctionEnded
	}
	if candidate.BidderID == auction.SellerID {
		return domain.ErrSellerBid
	}
	if candidate.Amount < auction.MinimumBid() {
		return &domain.BidTooLowError{Minimum: auction.MinimumBid()}
	}
	if candidate.IsAutoBid && candidate.MaxAutoBid <= candidate.Amount {
		return domain.ErrInvalidAutoBid
	}
	return nil
}

// MeetsReserve reports whether an amount would qualify the auction for
// sale. Auctions without a reserve always qualify.
func MeetsReserve(auction *domain.Auction, amount float64) bool {
	return !auction.HasReserve() || amount >= auction.ReservePrice
}
