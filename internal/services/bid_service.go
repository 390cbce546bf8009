package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

type BidServiceConfig struct {
	LockTimeout    time.Duration
	StorageRetries int
	RetryBackoff   time.Duration
}

func DefaultBidServiceConfig() BidServiceConfig {
	return BidServiceConfig{
		LockTimeout:    2 * time.Second,
		StorageRetries: 3,
		RetryBackoff:   50 * time.Millisecond,
	}
}

// BidService is the admission path for bids. All state reads and writes
// for one auction happen under that auction's lock; proxy resolution runs
// against the state read in the same critical section, never against a
// stale snapshot carried across a retry.
type BidService struct {
	auctions   domain.AuctionRepository
	bids       domain.BidRepository
	stateCache domain.AuctionStateCache
	publisher  domain.EventPublisher
	locks      *KeyedLock
	cfg        BidServiceConfig
	log        logger.Logger
	now        func() time.Time
}

func NewBidService(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	stateCache domain.AuctionStateCache,
	publisher domain.EventPublisher,
	locks *KeyedLock,
	cfg BidServiceConfig,
	log logger.Logger,
) *BidService {
	return &BidService{
		auctions:   auctions,
		bids:       bids,
		stateCache: stateCache,
		publisher:  publisher,
		locks:      locks,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type PlaceBidInput struct {
	AuctionID  string
	BidderID   string
	Amount     float64
	IsAutoBid  bool
	MaxAutoBid float64
	IP         string
}

func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (*domain.BidResult, error) {
	s.log.Debug("placing bid",
		"auction_id", in.AuctionID, "bidder_id", in.BidderID,
		"amount", in.Amount, "auto", in.IsAutoBid)

	// Fast-path reject on a cached terminal status. Terminal states are
	// one-way, so a cache hit here can never be stale-wrong; anything
	// else falls through to the authoritative read under the lock.
	if s.stateCache != nil {
		status, ok, err := s.stateCache.GetAuctionStatus(ctx, in.AuctionID)
		if err == nil && ok && status.Terminal() {
			return nil, domain.ErrAuctionNotActive
		}
	}

	if err := s.locks.Acquire(ctx, in.AuctionID, s.cfg.LockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(in.AuctionID)

	result, events, err := s.admit(ctx, in)
	if err != nil {
		return nil, err
	}

	// Enqueueing is non-blocking; fan-out itself happens off the lock.
	for _, event := range events {
		s.publisher.PublishAuctionEvent(ctx, event)
	}
	return result, nil
}

// admit runs validate/resolve/persist with bounded retries on storage
// failures. Every attempt starts over from a fresh auction read;
// validation rejections are deterministic and never retried.
func (s *BidService) admit(ctx context.Context, in PlaceBidInput) (*domain.BidResult, []*domain.AuctionEvent, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorage, ctx.Err())
			}
		}

		result, events, err := s.tryAdmit(ctx, in)
		if err == nil {
			return result, events, nil
		}
		if !errors.Is(err, domain.ErrStorage) {
			return nil, nil, err
		}

		lastErr = err
		if attempt >= s.cfg.StorageRetries {
			break
		}
		s.log.Warn("bid admission storage failure, retrying",
			"auction_id", in.AuctionID, "attempt", attempt+1, "error", err)
	}
	return nil, nil, lastErr
}

func (s *BidService) tryAdmit(ctx context.Context, in PlaceBidInput) (*domain.BidResult, []*domain.AuctionEvent, error) {
	auction, err := s.auctions.GetAuction(ctx, in.AuctionID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	bid := &domain.Bid{
		ID:         utils.GenerateID("bid"),
		AuctionID:  in.AuctionID,
		BidderID:   in.BidderID,
		Amount:     in.Amount,
		IsAutoBid:  in.IsAutoBid,
		MaxAutoBid: in.MaxAutoBid,
		IP:         in.IP,
		CreatedAt:  now,
	}

	if err := ValidateBid(auction, bid, now); err != nil {
		return nil, nil, err
	}

	proxies, err := s.bids.ListOutstandingAutoBids(ctx, in.AuctionID, in.BidderID)
	if err != nil {
		return nil, nil, err
	}

	outcome := ResolveAutoBids(auction, bid, proxies, now)
	displaced := auction.LeaderID

	persisted := append([]*domain.Bid{bid}, outcome.Synthesized...)
	if err := s.auctions.ApplyBidOutcome(ctx, auction.ID, auction.CurrentBid,
		outcome.FinalAmount, outcome.LeaderID, persisted); err != nil {
		return nil, nil, err
	}

	snapshot := *auction
	snapshot.CurrentBid = outcome.FinalAmount
	snapshot.LeaderID = outcome.LeaderID
	snapshot.TotalBids += len(persisted)
	snapshot.UpdatedAt = now

	result := &domain.BidResult{
		Bid:         bid,
		Synthesized: outcome.Synthesized,
		Auction:     &snapshot,
		ReserveMet:  MeetsReserve(auction, outcome.FinalAmount),
	}

	winning := persisted[len(persisted)-1]
	events := []*domain.AuctionEvent{{
		Type:      domain.EventBidPlaced,
		AuctionID: auction.ID,
		Auction:   &snapshot,
		Bid:       winning,
		Timestamp: now,
	}}
	if displaced != "" && displaced != outcome.LeaderID {
		events = append(events, &domain.AuctionEvent{
			Type:              domain.EventOutbid,
			AuctionID:         auction.ID,
			Auction:           &snapshot,
			DisplacedBidderID: displaced,
			Timestamp:         now,
		})
	}

	s.log.Info("bid accepted",
		"auction_id", auction.ID, "bidder_id", in.BidderID,
		"amount", in.Amount, "current_bid", outcome.FinalAmount,
		"leader_id", outcome.LeaderID, "synthesized", len(outcome.Synthesized))

	return result, events, nil
}

// GetHighestBid returns nil, nil when the auction has no bids yet.
func (s *BidService) GetHighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	if _, err := s.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bids.HighestBid(ctx, auctionID)
}

func (s *BidService) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := s.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bids.ListBidsByAuction(ctx, auctionID)
}

func (s *BidService) GetBidStatistics(ctx context.Context, auctionID string) (*domain.BidStatistics, error) {
	if _, err := s.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bids.BidStatistics(ctx, auctionID)
}
