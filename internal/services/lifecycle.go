package services

import (
	"context"
	"errors"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

type CreateAuctionInput struct {
	SellerID      string
	StartingPrice float64
	ReservePrice  float64
	BidIncrement  float64
	StartTime     time.Time
	EndTime       time.Time
}

var errInvalidAuctionInput = errors.New("invalid auction parameters")

// AuctionManager drives the draft -> active -> completed/cancelled state
// machine. Transitions take the same per-auction lock as bid admission,
// so a bid racing an ending sweep lands deterministically on one side of
// the transition.
type AuctionManager struct {
	auctions    domain.AuctionRepository
	bids        domain.BidRepository
	stateCache  domain.AuctionStateCache
	publisher   domain.EventPublisher
	locks       *KeyedLock
	lockTimeout time.Duration
	log         logger.Logger
	now         func() time.Time
}

func NewAuctionManager(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	stateCache domain.AuctionStateCache,
	publisher domain.EventPublisher,
	locks *KeyedLock,
	lockTimeout time.Duration,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		auctions:    auctions,
		bids:        bids,
		stateCache:  stateCache,
		publisher:   publisher,
		locks:       locks,
		lockTimeout: lockTimeout,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	if in.SellerID == "" || in.StartingPrice <= 0 || in.BidIncrement <= 0 ||
		in.ReservePrice < 0 || !in.EndTime.After(in.StartTime) {
		return nil, errInvalidAuctionInput
	}

	now := am.now()
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		SellerID:      in.SellerID,
		StartingPrice: in.StartingPrice,
		ReservePrice:  in.ReservePrice,
		CurrentBid:    in.StartingPrice,
		BidIncrement:  in.BidIncrement,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Status:        domain.AuctionDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := am.auctions.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}
	am.cacheStatus(ctx, auction.ID, domain.AuctionDraft)

	am.log.Info("auction created",
		"auction_id", auction.ID, "seller_id", auction.SellerID,
		"starting_price", auction.StartingPrice, "end_time", auction.EndTime)
	return auction, nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return am.auctions.GetAuction(ctx, auctionID)
}

// Activate opens a draft auction for bidding. Only the owning seller may
// activate; re-activating an already active or terminal auction is
// rejected rather than treated as a success.
func (am *AuctionManager) Activate(ctx context.Context, auctionID, sellerID string) (*domain.Auction, error) {
	if err := am.locks.Acquire(ctx, auctionID, am.lockTimeout); err != nil {
		return nil, err
	}
	defer am.locks.Release(auctionID)

	auction, err := am.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != sellerID {
		return nil, domain.ErrNotSeller
	}
	return am.activateLocked(ctx, auction)
}

func (am *AuctionManager) activateLocked(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if auction.Status != domain.AuctionDraft {
		return nil, domain.ErrInvalidTransition
	}

	if err := am.auctions.UpdateAuctionStatus(ctx, auction.ID, domain.AuctionActive, ""); err != nil {
		return nil, err
	}
	auction.Status = domain.AuctionActive
	auction.UpdatedAt = am.now()
	am.cacheStatus(ctx, auction.ID, domain.AuctionActive)

	am.publisher.PublishAuctionEvent(ctx, &domain.AuctionEvent{
		Type:      domain.EventAuctionUpdated,
		AuctionID: auction.ID,
		Auction:   auction,
		Timestamp: auction.UpdatedAt,
	})

	am.log.Info("auction activated", "auction_id", auction.ID)
	return auction, nil
}

// EndAuction completes an active auction, assigning the winner from the
// highest persisted bid that meets the reserve. Calling it again on a
// completed auction is a no-op returning the already-completed record.
func (am *AuctionManager) EndAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if err := am.locks.Acquire(ctx, auctionID, am.lockTimeout); err != nil {
		return nil, err
	}
	defer am.locks.Release(auctionID)

	auction, err := am.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	switch auction.Status {
	case domain.AuctionCompleted:
		return auction, nil
	case domain.AuctionActive:
	default:
		return nil, domain.ErrInvalidTransition
	}

	winnerID := ""
	highest, err := am.bids.HighestBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if highest != nil && MeetsReserve(auction, highest.Amount) {
		winnerID = highest.BidderID
	}

	if err := am.auctions.UpdateAuctionStatus(ctx, auctionID, domain.AuctionCompleted, winnerID); err != nil {
		return nil, err
	}
	auction.Status = domain.AuctionCompleted
	auction.WinnerID = winnerID
	auction.UpdatedAt = am.now()
	am.cacheStatus(ctx, auctionID, domain.AuctionCompleted)

	am.publisher.PublishAuctionEvent(ctx, &domain.AuctionEvent{
		Type:      domain.EventAuctionEnded,
		AuctionID: auctionID,
		Auction:   auction,
		WinnerID:  winnerID,
		Timestamp: auction.UpdatedAt,
	})

	am.log.Info("auction ended",
		"auction_id", auctionID, "winner_id", winnerID,
		"current_bid", auction.CurrentBid, "total_bids", auction.TotalBids)
	return auction, nil
}

// EndExpiredAuctions completes every active auction whose end time has
// passed. Safe to invoke concurrently or redundantly: each EndAuction is
// individually locked and status-guarded.
func (am *AuctionManager) EndExpiredAuctions(ctx context.Context) ([]*domain.Auction, error) {
	expired, err := am.auctions.ListExpiredActive(ctx, am.now())
	if err != nil {
		return nil, err
	}

	var ended []*domain.Auction
	for _, auction := range expired {
		completed, err := am.EndAuction(ctx, auction.ID)
		if err != nil {
			am.log.Error("failed to end expired auction",
				"auction_id", auction.ID, "error", err)
			continue
		}
		ended = append(ended, completed)
	}
	return ended, nil
}

// StartScheduledAuctions activates draft auctions whose scheduled start
// time has arrived.
func (am *AuctionManager) StartScheduledAuctions(ctx context.Context) ([]*domain.Auction, error) {
	due, err := am.auctions.ListScheduledStarts(ctx, am.now())
	if err != nil {
		return nil, err
	}

	var started []*domain.Auction
	for _, auction := range due {
		activated, err := am.startScheduled(ctx, auction.ID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue // already activated by the seller
			}
			am.log.Error("failed to start scheduled auction",
				"auction_id", auction.ID, "error", err)
			continue
		}
		started = append(started, activated)
	}
	return started, nil
}

func (am *AuctionManager) startScheduled(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if err := am.locks.Acquire(ctx, auctionID, am.lockTimeout); err != nil {
		return nil, err
	}
	defer am.locks.Release(auctionID)

	auction, err := am.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return am.activateLocked(ctx, auction)
}

// CancelAuction withdraws a draft or active auction. Existing bids stay
// recorded but carry no purchase obligation.
func (am *AuctionManager) CancelAuction(ctx context.Context, auctionID, sellerID string) (*domain.Auction, error) {
	if err := am.locks.Acquire(ctx, auctionID, am.lockTimeout); err != nil {
		return nil, err
	}
	defer am.locks.Release(auctionID)

	auction, err := am.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != sellerID {
		return nil, domain.ErrNotSeller
	}
	if auction.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	if err := am.auctions.UpdateAuctionStatus(ctx, auctionID, domain.AuctionCancelled, ""); err != nil {
		return nil, err
	}
	auction.Status = domain.AuctionCancelled
	auction.UpdatedAt = am.now()
	am.cacheStatus(ctx, auctionID, domain.AuctionCancelled)

	am.publisher.PublishAuctionEvent(ctx, &domain.AuctionEvent{
		Type:      domain.EventAuctionUpdated,
		AuctionID: auctionID,
		Auction:   auction,
		Timestamp: auction.UpdatedAt,
	})

	am.log.Info("auction cancelled", "auction_id", auctionID)
	return auction, nil
}

// cacheStatus is best effort; MySQL stays authoritative.
func (am *AuctionManager) cacheStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) {
	if am.stateCache == nil {
		return
	}
	if err := am.stateCache.SetAuctionStatus(ctx, auctionID, status); err != nil {
		am.log.Warn("failed to cache auction status",
			"auction_id", auctionID, "status", status.String(), "error", err)
	}
}
