package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

func newTestManager(store *memoryStore) (*AuctionManager, *capturePublisher, *fakeStateCache) {
	pub := &capturePublisher{}
	cache := newFakeStateCache()
	mgr := NewAuctionManager(store, store, cache, pub, NewKeyedLock(),
		100*time.Millisecond, logger.NewNop())
	return mgr, pub, cache
}

func validCreateInput() CreateAuctionInput {
	now := time.Now().UTC()
	return CreateAuctionInput{
		SellerID:      "seller-1",
		StartingPrice: 100,
		ReservePrice:  0,
		BidIncrement:  10,
		StartTime:     now,
		EndTime:       now.Add(time.Hour),
	}
}

func TestCreateAuction(t *testing.T) {
	ctx := context.Background()
	mgr, _, cache := newTestManager(newMemoryStore())

	auction, err := mgr.CreateAuction(ctx, validCreateInput())
	require.NoError(t, err)
	require.Equal(t, domain.AuctionDraft, auction.Status)
	require.Equal(t, 100.0, auction.CurrentBid)
	require.NotEmpty(t, auction.ID)

	status, ok, err := cache.GetAuctionStatus(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.AuctionDraft, status)
}

func TestCreateAuctionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(newMemoryStore())

	tests := []struct {
		name   string
		mutate func(in *CreateAuctionInput)
	}{
		{"missing_seller", func(in *CreateAuctionInput) { in.SellerID = "" }},
		{"zero_starting_price", func(in *CreateAuctionInput) { in.StartingPrice = 0 }},
		{"zero_increment", func(in *CreateAuctionInput) { in.BidIncrement = 0 }},
		{"negative_reserve", func(in *CreateAuctionInput) { in.ReservePrice = -1 }},
		{"end_before_start", func(in *CreateAuctionInput) { in.EndTime = in.StartTime.Add(-time.Minute) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput()
			tc.mutate(&in)
			_, err := mgr.CreateAuction(ctx, in)
			require.Error(t, err)
		})
	}
}

func TestActivate(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	mgr, pub, _ := newTestManager(store)

	auction, err := mgr.CreateAuction(ctx, validCreateInput())
	require.NoError(t, err)

	_, err = mgr.Activate(ctx, auction.ID, "seller-2")
	require.ErrorIs(t, err, domain.ErrNotSeller)

	activated, err := mgr.Activate(ctx, auction.ID, "seller-1")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionActive, activated.Status)
	require.Len(t, pub.byType(domain.EventAuctionUpdated), 1)

	_, err = mgr.Activate(ctx, auction.ID, "seller-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestActivateUnknownAuction(t *testing.T) {
	mgr, _, _ := newTestManager(newMemoryStore())
	_, err := mgr.Activate(context.Background(), "auction-missing", "seller-1")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestEndAuctionAssignsWinner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.CreateAuction(ctx, activeAuction()))
	require.NoError(t, store.ApplyBidOutcome(ctx, "auction-1", 100, 150, "bidder-1", []*domain.Bid{
		{ID: "bid-1", AuctionID: "auction-1", BidderID: "bidder-1", Amount: 150,
			CreatedAt: time.Now().UTC()},
	}))
	mgr, pub, cache := newTestManager(store)

	ended, err := mgr.EndAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, ended.Status)
	require.Equal(t, "bidder-1", ended.WinnerID)

	events := pub.byType(domain.EventAuctionEnded)
	require.Len(t, events, 1)
	require.Equal(t, "bidder-1", events[0].WinnerID)

	status, ok, err := cache.GetAuctionStatus(ctx, "auction-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.AuctionCompleted, status)
}

func TestEndAuctionReserveNotMet(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	auction := activeAuction()
	auction.ReservePrice = 500
	require.NoError(t, store.CreateAuction(ctx, auction))
	require.NoError(t, store.ApplyBidOutcome(ctx, "auction-1", 100, 150, "bidder-1", []*domain.Bid{
		{ID: "bid-1", AuctionID: "auction-1", BidderID: "bidder-1", Amount: 150,
			CreatedAt: time.Now().UTC()},
	}))
	mgr, _, _ := newTestManager(store)

	ended, err := mgr.EndAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, ended.Status)
	require.Empty(t, ended.WinnerID)
}

func TestEndAuctionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.CreateAuction(ctx, activeAuction()))
	mgr, pub, _ := newTestManager(store)

	first, err := mgr.EndAuction(ctx, "auction-1")
	require.NoError(t, err)

	second, err := mgr.EndAuction(ctx, "auction-1")
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.WinnerID, second.WinnerID)
	require.Len(t, pub.byType(domain.EventAuctionEnded), 1)
}

func TestEndAuctionDraftRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	auction := activeAuction()
	auction.Status = domain.AuctionDraft
	require.NoError(t, store.CreateAuction(ctx, auction))
	mgr, _, _ := newTestManager(store)

	_, err := mgr.EndAuction(ctx, "auction-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelAuction(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.CreateAuction(ctx, activeAuction()))
	mgr, pub, _ := newTestManager(store)

	_, err := mgr.CancelAuction(ctx, "auction-1", "seller-2")
	require.ErrorIs(t, err, domain.ErrNotSeller)

	cancelled, err := mgr.CancelAuction(ctx, "auction-1", "seller-1")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCancelled, cancelled.Status)
	require.Len(t, pub.byType(domain.EventAuctionUpdated), 1)

	_, err = mgr.CancelAuction(ctx, "auction-1", "seller-1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestEndExpiredAuctions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newMemoryStore()

	expired := activeAuction()
	expired.ID = "auction-expired"
	expired.EndTime = now.Add(-time.Minute)
	require.NoError(t, store.CreateAuction(ctx, expired))

	running := activeAuction()
	running.ID = "auction-running"
	require.NoError(t, store.CreateAuction(ctx, running))

	draft := activeAuction()
	draft.ID = "auction-draft"
	draft.Status = domain.AuctionDraft
	draft.EndTime = now.Add(-time.Minute)
	require.NoError(t, store.CreateAuction(ctx, draft))

	mgr, _, _ := newTestManager(store)

	ended, err := mgr.EndExpiredAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	require.Equal(t, "auction-expired", ended[0].ID)

	stored, err := store.GetAuction(ctx, "auction-running")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionActive, stored.Status)
}

func TestStartScheduledAuctions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := newMemoryStore()

	due := activeAuction()
	due.ID = "auction-due"
	due.Status = domain.AuctionDraft
	due.StartTime = now.Add(-time.Minute)
	require.NoError(t, store.CreateAuction(ctx, due))

	future := activeAuction()
	future.ID = "auction-future"
	future.Status = domain.AuctionDraft
	future.StartTime = now.Add(time.Hour)
	require.NoError(t, store.CreateAuction(ctx, future))

	mgr, _, _ := newTestManager(store)

	started, err := mgr.StartScheduledAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, started, 1)
	require.Equal(t, "auction-due", started[0].ID)

	stored, err := store.GetAuction(ctx, "auction-future")
	require.NoError(t, err)
	require.Equal(t, domain.AuctionDraft, stored.Status)
}

// A bid arriving after the sweep ended the auction is rejected on the
// authoritative status, never admitted against the stale active record.
func TestBidAfterEndRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.CreateAuction(ctx, activeAuction()))

	pub := &capturePublisher{}
	cache := newFakeStateCache()
	locks := NewKeyedLock()
	mgr := NewAuctionManager(store, store, cache, pub, locks,
		100*time.Millisecond, logger.NewNop())
	svc := NewBidService(store, store, cache, pub, locks,
		DefaultBidServiceConfig(), logger.NewNop())

	_, err := mgr.EndAuction(ctx, "auction-1")
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, PlaceBidInput{
		AuctionID: "auction-1", BidderID: "bidder-1", Amount: 110,
	})
	require.ErrorIs(t, err, domain.ErrAuctionNotActive)
}
