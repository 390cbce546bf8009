package domain

import "time"

type AuctionEventType string

const (
	EventBidPlaced      AuctionEventType = "bid_placed"
	EventOutbid         AuctionEventType = "outbid"
	EventAuctionEnded   AuctionEventType = "auction_ended"
	EventAuctionUpdated AuctionEventType = "auction_updated"
)

// AuctionEvent is the notification side channel emitted after a state
// mutation has committed. Delivery is best effort and never rolls back
// the mutation; events for one auction are delivered in commit order.
type AuctionEvent struct {
	Type      AuctionEventType `json:"type"`
	AuctionID string           `json:"auction_id"`
	Auction   *Auction         `json:"auction,omitempty"`
	Bid       *Bid             `json:"bid,omitempty"`

	// Outbid only: the bidder who just lost the lead.
	DisplacedBidderID string `json:"displaced_bidder_id,omitempty"`

	// AuctionEnded only: empty when no bid met the reserve.
	WinnerID string `json:"winner_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
