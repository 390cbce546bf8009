package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
)

// memoryStore is an in-memory AuctionRepository + BidRepository with the
// same atomicity contract as the MySQL implementation: ApplyBidOutcome
// either applies the bids and the auction update together or fails
// without touching anything.
type memoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid

	applyErrs []error // popped per ApplyBidOutcome call, nil entries succeed
	applyOps  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
	}
}

func (m *memoryStore) failNextApply(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErrs = append(m.applyErrs, errs...)
}

func (m *memoryStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *auction
	m.auctions[auction.ID] = &cp
	return nil
}

func (m *memoryStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	auction, ok := m.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	cp := *auction
	return &cp, nil
}

func (m *memoryStore) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus, winnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	auction, ok := m.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	auction.Status = status
	auction.WinnerID = winnerID
	auction.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryStore) ApplyBidOutcome(ctx context.Context, auctionID string, expectedBid float64, newBid float64, leaderID string, bids []*domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyOps++
	if len(m.applyErrs) > 0 {
		err := m.applyErrs[0]
		m.applyErrs = m.applyErrs[1:]
		if err != nil {
			return err
		}
	}

	auction, ok := m.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if auction.CurrentBid != expectedBid {
		return fmt.Errorf("%w: auction %s changed underneath the bid", domain.ErrStorage, auctionID)
	}

	for _, bid := range bids {
		cp := *bid
		m.bids[auctionID] = append(m.bids[auctionID], &cp)
	}
	auction.CurrentBid = newBid
	auction.LeaderID = leaderID
	auction.TotalBids += len(bids)
	auction.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryStore) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Auction
	for _, auction := range m.auctions {
		if auction.Status == domain.AuctionActive && !auction.EndTime.After(now) {
			cp := *auction
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) ListScheduledStarts(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Auction
	for _, auction := range m.auctions {
		if auction.Status == domain.AuctionDraft && !auction.StartTime.After(now) {
			cp := *auction
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) ListBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bids := append([]*domain.Bid(nil), m.bids[auctionID]...)
	for i := 0; i < len(bids); i++ {
		for j := i + 1; j < len(bids); j++ {
			if bids[j].Amount > bids[i].Amount {
				bids[i], bids[j] = bids[j], bids[i]
			}
		}
	}
	return bids, nil
}

func (m *memoryStore) HighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var highest *domain.Bid
	for _, bid := range m.bids[auctionID] {
		if highest == nil || bid.Amount > highest.Amount {
			highest = bid
		}
	}
	if highest == nil {
		return nil, nil
	}
	cp := *highest
	return &cp, nil
}

func (m *memoryStore) ListOutstandingAutoBids(ctx context.Context, auctionID, excludingBidder string) ([]*domain.ProxyBid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ceilings := make(map[string]*domain.ProxyBid)
	for _, bid := range m.bids[auctionID] {
		if !bid.IsAutoBid || bid.BidderID == excludingBidder {
			continue
		}
		proxy, ok := ceilings[bid.BidderID]
		switch {
		case !ok || bid.MaxAutoBid > proxy.MaxAutoBid:
			ceilings[bid.BidderID] = &domain.ProxyBid{
				BidderID:   bid.BidderID,
				MaxAutoBid: bid.MaxAutoBid,
				PlacedAt:   bid.CreatedAt,
			}
		case bid.MaxAutoBid == proxy.MaxAutoBid && bid.CreatedAt.Before(proxy.PlacedAt):
			proxy.PlacedAt = bid.CreatedAt
		}
	}

	var out []*domain.ProxyBid
	for _, proxy := range ceilings {
		out = append(out, proxy)
	}
	return out, nil
}

func (m *memoryStore) BidStatistics(ctx context.Context, auctionID string) (*domain.BidStatistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &domain.BidStatistics{}
	bidders := make(map[string]struct{})
	sum := 0.0
	for _, bid := range m.bids[auctionID] {
		if stats.Count == 0 || bid.Amount < stats.Min {
			stats.Min = bid.Amount
		}
		if bid.Amount > stats.Max {
			stats.Max = bid.Amount
		}
		stats.Count++
		sum += bid.Amount
		bidders[bid.BidderID] = struct{}{}
	}
	stats.UniqueBidders = len(bidders)
	if stats.Count > 0 {
		stats.Average = sum / float64(stats.Count)
	}
	return stats, nil
}

// capturePublisher records published events in order.
type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (p *capturePublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []*domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.AuctionEvent(nil), p.events...)
}

func (p *capturePublisher) byType(t domain.AuctionEventType) []*domain.AuctionEvent {
	var out []*domain.AuctionEvent
	for _, event := range p.all() {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

// fakeStateCache serves a fixed cached status.
type fakeStateCache struct {
	mu     sync.Mutex
	status map[string]domain.AuctionStatus
}

func newFakeStateCache() *fakeStateCache {
	return &fakeStateCache{status: make(map[string]domain.AuctionStatus)}
}

func (c *fakeStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[auctionID] = status
	return nil
}

func (c *fakeStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.status[auctionID]
	return status, ok, nil
}
