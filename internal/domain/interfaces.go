package domain

import (
	"context"
	"time"
)

// Repository interfaces. The store provides ACID transactions; the engine
// never persists a Bid row without the matching Auction update.

type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus, winnerID string) error
	// ApplyBidOutcome persists the originating bid plus any synthesized
	// auto-bids and updates current_bid/leader_id/total_bids in one
	// transaction. The update is guarded on the current_bid value read
	// before resolution; a mismatch aborts the transaction.
	ApplyBidOutcome(ctx context.Context, auctionID string, expectedBid float64, newBid float64, leaderID string, bids []*Bid) error
	ListExpiredActive(ctx context.Context, now time.Time) ([]*Auction, error)
	ListScheduledStarts(ctx context.Context, now time.Time) ([]*Auction, error)
}

type BidRepository interface {
	// ListBidsByAuction returns the bid log ordered by amount descending.
	ListBidsByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
	// HighestBid returns nil, nil when the auction has no bids.
	HighestBid(ctx context.Context, auctionID string) (*Bid, error)
	// ListOutstandingAutoBids returns one ceiling per bidder (their
	// highest registered maximum, earliest placement on ties), excluding
	// the given bidder.
	ListOutstandingAutoBids(ctx context.Context, auctionID, excludingBidder string) ([]*ProxyBid, error)
	BidStatistics(ctx context.Context, auctionID string) (*BidStatistics, error)
}

// Cache interfaces

type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// Event interfaces

// EventSink receives committed domain events. Implementations must not
// block the caller for long and must swallow their own failures.
type EventSink interface {
	Deliver(ctx context.Context, event *AuctionEvent) error
}

type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent)
}

// Notification interfaces

type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface

type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces

type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
	NotifyUser(ctx context.Context, userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
