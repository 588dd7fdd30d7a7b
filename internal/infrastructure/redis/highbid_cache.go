package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"diecast-trading/internal/domain"

	"github.com/go-redis/redis/v8"
)

// HighBidCache keeps a per-listing snapshot of the current high bid for
// display fast paths. MySQL stays authoritative; a stale cache entry is
// corrected by the next successful advance.
type HighBidCache struct {
	client *redis.Client
}

func NewHighBidCache(client *redis.Client) *HighBidCache {
	return &HighBidCache{client: client}
}

func highBidKey(listingID string) string {
	return fmt.Sprintf("listing:%s:highbid", listingID)
}

func (r *HighBidCache) InitializeListing(ctx context.Context, listingID string, startingPrice float64) error {
	return r.client.HSet(ctx, highBidKey(listingID),
		"amount", fmt.Sprintf("%.2f", startingPrice),
		"bidder_id", "",
		"updated_at", time.Now().Unix(),
	).Err()
}

// AdvanceHighBid moves the snapshot forward atomically. Out-of-order writes
// from racing bids lose (returns false) rather than regressing the amount.
func (r *HighBidCache) AdvanceHighBid(ctx context.Context, listingID, bidderID string, amount float64) (bool, error) {
	luaScript := `
        local key = "listing:" .. KEYS[1] .. ":highbid"
        local current = redis.call('HGET', key, 'amount')

        if current ~= false and tonumber(ARGV[1]) <= tonumber(current) then
            return 0
        end

        redis.call('HSET', key,
            'amount', ARGV[1],
            'bidder_id', ARGV[2],
            'updated_at', ARGV[3])
        return 1
    `

	result, err := r.client.Eval(ctx, luaScript, []string{listingID},
		fmt.Sprintf("%.2f", amount),
		bidderID,
		strconv.FormatInt(time.Now().Unix(), 10)).Result()
	if err != nil {
		return false, err
	}

	advanced, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected eval result %T", result)
	}
	return advanced == 1, nil
}

func (r *HighBidCache) GetHighBid(ctx context.Context, listingID string) (*domain.CachedHighBid, error) {
	result, err := r.client.HMGet(ctx, highBidKey(listingID), "amount", "bidder_id", "updated_at").Result()
	if err != nil {
		return nil, err
	}
	if result[0] == nil {
		return nil, nil
	}

	cached := &domain.CachedHighBid{ListingID: listingID}
	cached.Amount, _ = strconv.ParseFloat(result[0].(string), 64)
	if result[1] != nil {
		cached.BidderID = result[1].(string)
	}
	if result[2] != nil {
		unix, _ := strconv.ParseInt(result[2].(string), 10, 64)
		cached.UpdatedAt = time.Unix(unix, 0)
	}
	return cached, nil
}

func (r *HighBidCache) DropListing(ctx context.Context, listingID string) error {
	return r.client.Del(ctx, highBidKey(listingID)).Err()
}
