package services

import (
	"context"
	"sync"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

const dispatchQueueSize = 256

// Dispatcher fans committed domain events out to the auction's watcher
// room, the affected users, and any additional sinks (the redis broadcast
// channel). Delivery is best effort: failures are logged and swallowed,
// never surfaced to the code that committed the mutation. Events for one
// auction flow through a single queue, so they reach subscribers in
// commit order; enqueueing is cheap enough to happen while the admission
// lock is still held.
type Dispatcher struct {
	connManager domain.ConnectionManager
	sinks       []domain.EventSink
	log         logger.Logger

	mu     sync.Mutex
	queues map[string]chan *domain.AuctionEvent
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(connManager domain.ConnectionManager, log logger.Logger, sinks ...domain.EventSink) *Dispatcher {
	return &Dispatcher{
		connManager: connManager,
		sinks:       sinks,
		log:         log,
		queues:      make(map[string]chan *domain.AuctionEvent),
	}
}

func (d *Dispatcher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	queue, ok := d.queues[event.AuctionID]
	if !ok {
		queue = make(chan *domain.AuctionEvent, dispatchQueueSize)
		d.queues[event.AuctionID] = queue
		d.wg.Add(1)
		go d.drain(event.AuctionID, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- event:
	default:
		// Subscribers are a side channel; shedding beats blocking a bidder.
		d.log.Warn("event queue full, dropping event",
			"auction_id", event.AuctionID, "type", event.Type)
	}
}

// Close stops accepting events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.queues = make(map[string]chan *domain.AuctionEvent)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) drain(auctionID string, queue chan *domain.AuctionEvent) {
	defer d.wg.Done()

	for event := range queue {
		d.deliver(event)
		if event.Type == domain.EventAuctionEnded {
			d.retire(auctionID, queue)
			return
		}
	}
}

// retire removes the auction's queue after its terminal event, delivering
// anything that raced in behind it.
func (d *Dispatcher) retire(auctionID string, queue chan *domain.AuctionEvent) {
	d.mu.Lock()
	if d.queues[auctionID] == queue {
		delete(d.queues, auctionID)
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return
	}
	for {
		select {
		case event := <-queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event *domain.AuctionEvent) {
	ctx := context.Background()

	switch event.Type {
	case domain.EventBidPlaced:
		d.broadcast(ctx, event)
		if event.Auction != nil {
			d.notify(ctx, event.Auction.SellerID, event)
		}
	case domain.EventOutbid:
		d.notify(ctx, event.DisplacedBidderID, event)
	case domain.EventAuctionEnded:
		d.broadcast(ctx, event)
		if event.WinnerID != "" {
			d.notify(ctx, event.WinnerID, event)
		}
		if event.Auction != nil {
			d.notify(ctx, event.Auction.SellerID, event)
		}
		if err := d.connManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
			d.log.Warn("failed to close auction connections",
				"auction_id", event.AuctionID, "error", err)
		}
	default:
		d.broadcast(ctx, event)
	}

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			d.log.Warn("event sink delivery failed",
				"auction_id", event.AuctionID, "type", event.Type, "error", err)
		}
	}
}

func (d *Dispatcher) broadcast(ctx context.Context, event *domain.AuctionEvent) {
	if err := d.connManager.BroadcastToAuction(ctx, event.AuctionID, event); err != nil {
		d.log.Warn("auction broadcast failed",
			"auction_id", event.AuctionID, "type", event.Type, "error", err)
	}
}

func (d *Dispatcher) notify(ctx context.Context, userID string, event *domain.AuctionEvent) {
	if userID == "" {
		return
	}
	if err := d.connManager.NotifyUser(ctx, userID, event); err != nil {
		d.log.Warn("user notification failed",
			"user_id", userID, "type", event.Type, "error", err)
	}
}
