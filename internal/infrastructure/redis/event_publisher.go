package redis

import (
	"context"
	"encoding/json"

	"diecast-trading/internal/domain"

	"github.com/go-redis/redis/v8"
)

const listingEventsChannel = "listing_events"

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishListingEvent(ctx context.Context, event *domain.ListingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, listingEventsChannel, payload).Err()
}
