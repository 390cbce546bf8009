package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"auction-marketplace/internal/domain"
)

// RedisStateCache keeps auction statuses for the fast-path admission
// reject. MySQL stays authoritative; a miss here just means the slow path.
type RedisStateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction:%s:status", auctionID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	key := fmt.Sprintf("auction:%s:status", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AuctionDraft, false, nil
		}
		return domain.AuctionDraft, false, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.AuctionDraft, false, err
	}
	return domain.AuctionStatus(status), true, nil
}
