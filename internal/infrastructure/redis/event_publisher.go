package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"auction-marketplace/internal/domain"
)

const eventsChannel = "auction_events"

// EventSink publishes committed auction events to the shared redis
// channel. This is the administrative broadcast feed: other instances,
// dashboards, and audit consumers subscribe here.
type EventSink struct {
	client *redis.Client
}

func NewEventSink(client *redis.Client) *EventSink {
	return &EventSink{client: client}
}

func (r *EventSink) Deliver(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventsChannel, payload).Err()
}

// EventSubscriber consumes the shared channel, for processes that watch
// auctions without owning them.
type EventSubscriber struct {
	client *redis.Client
}

func NewEventSubscriber(client *redis.Client) *EventSubscriber {
	return &EventSubscriber{client: client}
}

func (r *EventSubscriber) Subscribe(ctx context.Context, handler func(event *domain.AuctionEvent) error) error {
	pubsub := r.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.AuctionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // malformed payloads are skipped, not fatal
			}
			if err := handler(&event); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
