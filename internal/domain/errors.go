package domain

import (
	"errors"
	"fmt"
)

// Expected, recoverable-by-caller rejections. Validation errors are
// deterministic for a given auction state and are never retried; only
// ErrBusy and ErrStorage are retryable.
var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrSellerBid         = errors.New("seller cannot bid on own auction")
	ErrInvalidAutoBid    = errors.New("auto bid requires a maximum above the bid amount")
	ErrNotSeller         = errors.New("caller does not own this auction")
	ErrInvalidTransition = errors.New("invalid auction status transition")
	ErrBusy              = errors.New("auction is busy, retry")
	ErrStorage           = errors.New("storage failure")
)

// BidTooLowError carries the exact minimum the next bid must reach,
// so the client can re-prompt without another round trip.
type BidTooLowError struct {
	Minimum float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, minimum is %.2f", e.Minimum)
}

// ReasonCode maps an engine error to its machine-checkable reason.
func ReasonCode(err error) string {
	var tooLow *BidTooLowError
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return "auction_not_found"
	case errors.Is(err, ErrAuctionNotActive):
		return "auction_not_active"
	case errors.Is(err, ErrAuctionEnded):
		return "auction_ended"
	case errors.Is(err, ErrSellerBid):
		return "seller_cannot_bid_own_auction"
	case errors.As(err, &tooLow):
		return "bid_too_low"
	case errors.Is(err, ErrInvalidAutoBid):
		return "invalid_auto_bid"
	case errors.Is(err, ErrNotSeller):
		return "not_seller"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal_error"
	}
}

// Retryable reports whether the caller may safely resubmit the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrStorage)
}
