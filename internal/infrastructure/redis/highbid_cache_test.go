package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

func TestGetHighBid(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	cache := NewHighBidCache(client)

	mock.ExpectHMGet("listing:lst_1:highbid", "amount", "bidder_id", "updated_at").
		SetVal([]interface{}{"12.50", "bob", "1700000000"})

	cached, err := cache.GetHighBid(context.Background(), "lst_1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Equal(t, "lst_1", cached.ListingID)
	require.Equal(t, 12.50, cached.Amount)
	require.Equal(t, "bob", cached.BidderID)
	require.Equal(t, time.Unix(1700000000, 0), cached.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHighBid_Missing(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	cache := NewHighBidCache(client)

	mock.ExpectHMGet("listing:lst_1:highbid", "amount", "bidder_id", "updated_at").
		SetVal([]interface{}{nil, nil, nil})

	cached, err := cache.GetHighBid(context.Background(), "lst_1")
	require.NoError(t, err)
	require.Nil(t, cached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropListing(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	cache := NewHighBidCache(client)

	mock.ExpectDel("listing:lst_1:highbid").SetVal(1)

	require.NoError(t, cache.DropListing(context.Background(), "lst_1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
