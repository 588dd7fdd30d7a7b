package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diecast-trading/internal/domain"
	"diecast-trading/pkg/logger"
	"diecast-trading/pkg/utils"
)

// BidService is the bid submission entry point: read the current high bid,
// validate, append. The ledger linearizes commits per listing, so two racing
// bids produce exactly one ErrBidConflict; the service re-validates against
// fresh state once before surfacing the conflict.
type BidService struct {
	listings  domain.ListingRepository
	ledger    domain.BidLedger
	validator *BidValidator
	highBids  domain.HighBidCache
	events    domain.EventPublisher
	log       logger.Logger
	now       func() time.Time
}

func NewBidService(
	listings domain.ListingRepository,
	ledger domain.BidLedger,
	validator *BidValidator,
	highBids domain.HighBidCache,
	events domain.EventPublisher,
	log logger.Logger,
) *BidService {
	return &BidService{
		listings:  listings,
		ledger:    ledger,
		validator: validator,
		highBids:  highBids,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

func (s *BidService) PlaceBid(ctx context.Context, listingID, bidderID string, amount float64) (*domain.Bid, error) {
	if listingID == "" || bidderID == "" {
		return nil, fmt.Errorf("place bid: %w", domain.ErrListingNotFound)
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, err)
	}

	bid, err := s.tryPlace(ctx, listing, bidderID, amount)
	if errors.Is(err, domain.ErrBidConflict) {
		// A concurrent bid won the race; re-validate once against the
		// fresh high bid before giving up.
		s.log.Info("Bid raced, re-validating", "listing_id", listingID, "bidder_id", bidderID)
		bid, err = s.tryPlace(ctx, listing, bidderID, amount)
	}
	if err != nil {
		return nil, err
	}

	s.publishAccepted(ctx, bid)
	return bid, nil
}

func (s *BidService) tryPlace(ctx context.Context, listing *domain.Listing, bidderID string, amount float64) (*domain.Bid, error) {
	current := listing.StartingPrice
	highest, err := s.ledger.HighestBid(ctx, listing.ID)
	if err != nil && !errors.Is(err, domain.ErrNoBids) {
		return nil, fmt.Errorf("read high bid for %s: %w", listing.ID, err)
	}
	if highest != nil {
		current = highest.Amount
	}

	if err := s.validator.Validate(listing, current, amount, bidderID, s.now()); err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		ListingID: listing.ID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  s.now().UTC(),
	}
	if err := s.ledger.AppendBid(ctx, bid); err != nil {
		return nil, err
	}
	return bid, nil
}

// publishAccepted advances the redis snapshot and fans the event out.
// Both are best effort: the bid is already durably committed.
func (s *BidService) publishAccepted(ctx context.Context, bid *domain.Bid) {
	if s.highBids != nil {
		if _, err := s.highBids.AdvanceHighBid(ctx, bid.ListingID, bid.BidderID, bid.Amount); err != nil {
			s.log.Warn("Failed to advance high-bid cache", "listing_id", bid.ListingID, "error", err)
		}
	}
	if s.events != nil {
		event := &domain.ListingEvent{
			Type:      domain.EventBidAccepted,
			ListingID: bid.ListingID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			Timestamp: bid.PlacedAt,
		}
		if err := s.events.PublishListingEvent(ctx, event); err != nil {
			s.log.Warn("Failed to publish bid event", "listing_id", bid.ListingID, "error", err)
		}
	}
}

// CurrentHigh returns the listing's current high bid, served from the redis
// snapshot when one is populated and falling back to the ledger. Returns nil
// when no bids exist.
func (s *BidService) CurrentHigh(ctx context.Context, listing *domain.Listing) (*domain.CachedHighBid, error) {
	if s.highBids != nil {
		cached, err := s.highBids.GetHighBid(ctx, listing.ID)
		if err != nil {
			s.log.Warn("High-bid cache read failed", "listing_id", listing.ID, "error", err)
		} else if cached != nil && cached.BidderID != "" {
			return cached, nil
		}
	}

	highest, err := s.ledger.HighestBid(ctx, listing.ID)
	if errors.Is(err, domain.ErrNoBids) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read high bid for %s: %w", listing.ID, err)
	}
	return &domain.CachedHighBid{
		ListingID: listing.ID,
		Amount:    highest.Amount,
		BidderID:  highest.BidderID,
		UpdatedAt: highest.PlacedAt,
	}, nil
}

// NextMinimum returns the smallest acceptable bid for a listing right now,
// used by the API to tell a rejected bidder what to offer instead.
func (s *BidService) NextMinimum(ctx context.Context, listing *domain.Listing) (float64, error) {
	highest, err := s.ledger.HighestBid(ctx, listing.ID)
	if err != nil && !errors.Is(err, domain.ErrNoBids) {
		return 0, fmt.Errorf("read high bid for %s: %w", listing.ID, err)
	}
	return s.validator.MinimumFor(listing, highest), nil
}

// BidHistory returns a listing's bids newest first, keyset-paginated by
// placed-at. A zero before means "from now".
func (s *BidService) BidHistory(ctx context.Context, listingID string, before time.Time, limit int) ([]*domain.Bid, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if before.IsZero() {
		before = s.now().UTC()
	}
	bids, err := s.ledger.ListBids(ctx, listingID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list bids for %s: %w", listingID, err)
	}
	return bids, nil
}
