package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisFinalizeLock is a short-TTL SetNX lock taken per listing during
// finalization. It only cuts down duplicate work between overlapping
// sweeps; the database status check-and-set is the correctness guard.
type RedisFinalizeLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFinalizeLock(client *redis.Client, ttl time.Duration) *RedisFinalizeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisFinalizeLock{client: client, ttl: ttl}
}

func lockKey(listingID string) string {
	return fmt.Sprintf("finalize:%s:lock", listingID)
}

func (r *RedisFinalizeLock) Acquire(ctx context.Context, listingID string) (bool, error) {
	return r.client.SetNX(ctx, lockKey(listingID), 1, r.ttl).Result()
}

func (r *RedisFinalizeLock) Release(ctx context.Context, listingID string) error {
	return r.client.Del(ctx, lockKey(listingID)).Err()
}
