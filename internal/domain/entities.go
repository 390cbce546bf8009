package domain

import (
	"time"
)

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionActive
	AuctionCompleted
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionDraft:
		return "draft"
	case AuctionActive:
		return "active"
	case AuctionCompleted:
		return "completed"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further status transitions are allowed.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled
}

// Auction is the mutable side of the bidding engine. CurrentBid never
// decreases over its lifetime and LeaderID is the single authoritative
// holder of the current highest accepted bid.
type Auction struct {
	ID            string
	SellerID      string
	StartingPrice float64
	ReservePrice  float64 // 0 means no reserve
	CurrentBid    float64
	BidIncrement  float64
	LeaderID      string // empty until the first accepted bid
	StartTime     time.Time
	EndTime       time.Time
	Status        AuctionStatus
	WinnerID      string // set on completion only, empty when reserve not met
	TotalBids     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasReserve reports whether the seller set a minimum sale price.
func (a *Auction) HasReserve() bool {
	return a.ReservePrice > 0
}

// MinimumBid is the lowest amount the next bid must reach. Rejections
// carry this value back to the client verbatim.
func (a *Auction) MinimumBid() float64 {
	return a.CurrentBid + a.BidIncrement
}

// Bid rows are append-only and immutable once persisted.
type Bid struct {
	ID         string
	AuctionID  string
	BidderID   string
	Amount     float64
	IsAutoBid  bool
	MaxAutoBid float64 // present only when IsAutoBid
	IP         string  // abuse auditing only
	CreatedAt  time.Time
}

// ProxyBid is an outstanding auto-bid ceiling held on a bidder's behalf.
// PlacedAt breaks ties between identical maxima: earliest wins.
type ProxyBid struct {
	BidderID   string
	MaxAutoBid float64
	PlacedAt   time.Time
}

// BidStatistics summarizes the bid history of one auction.
type BidStatistics struct {
	Count         int     `json:"count"`
	UniqueBidders int     `json:"unique_bidders"`
	Average       float64 `json:"average"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
}

// BidResult is returned to a successful PlaceBid caller: the accepted
// originating bid, any system bids synthesized by proxy resolution, and
// the refreshed auction snapshot.
type BidResult struct {
	Bid         *Bid
	Synthesized []*Bid
	Auction     *Auction
	ReserveMet  bool
}
