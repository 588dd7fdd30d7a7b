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

// ListingDraft carries the caller-supplied fields for creating or updating
// the open listing of an item.
type ListingDraft struct {
	OwnerID      string
	ItemID       string
	Kind         domain.ListingKind
	SalePrice    *float64
	TradeAccepts string

	StartingPrice float64
	AllowCents    bool
	StartTime     *time.Time
	EndTime       *time.Time
}

var ErrInvalidDraft = errors.New("invalid listing draft")

type ListingService struct {
	listings domain.ListingRepository
	ledger   domain.BidLedger
	highBids domain.HighBidCache
	log      logger.Logger
	now      func() time.Time
}

func NewListingService(
	listings domain.ListingRepository,
	ledger domain.BidLedger,
	highBids domain.HighBidCache,
	log logger.Logger,
) *ListingService {
	return &ListingService{
		listings: listings,
		ledger:   ledger,
		highBids: highBids,
		log:      log,
		now:      time.Now,
	}
}

// UpsertListing creates the listing for an item, or updates the item's open
// listing when one already exists. Auction parameters lock as soon as the
// first bid lands; finalized listings are never editable again.
func (s *ListingService) UpsertListing(ctx context.Context, draft ListingDraft) (*domain.Listing, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	existing, err := s.listings.GetOpenListingForItem(ctx, draft.OwnerID, draft.ItemID)
	if err != nil && !errors.Is(err, domain.ErrListingNotFound) {
		return nil, fmt.Errorf("look up open listing for item %s: %w", draft.ItemID, err)
	}
	if existing != nil {
		return s.updateExisting(ctx, existing, draft)
	}

	listing := &domain.Listing{
		ID:            utils.GenerateID("lst"),
		OwnerID:       draft.OwnerID,
		ItemID:        draft.ItemID,
		Kind:          draft.Kind,
		Status:        domain.StatusOpen,
		SalePrice:     draft.SalePrice,
		TradeAccepts:  draft.TradeAccepts,
		StartingPrice: draft.StartingPrice,
		AllowCents:    draft.AllowCents,
		StartTime:     draft.StartTime,
		EndTime:       draft.EndTime,
		CreatedAt:     s.now().UTC(),
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.listings.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing for item %s: %w", draft.ItemID, err)
	}

	if listing.IsAuction() && s.highBids != nil {
		if err := s.highBids.InitializeListing(ctx, listing.ID, listing.StartingPrice); err != nil {
			s.log.Warn("Failed to seed high-bid cache", "listing_id", listing.ID, "error", err)
		}
	}

	s.log.Info("Listing created", "listing_id", listing.ID, "kind", listing.Kind)
	return listing, nil
}

func (s *ListingService) updateExisting(ctx context.Context, existing *domain.Listing, draft ListingDraft) (*domain.Listing, error) {
	if existing.OwnerID != draft.OwnerID {
		return nil, domain.ErrNotOwner
	}
	if existing.Status != domain.StatusOpen {
		return nil, domain.ErrListingNotOpen
	}

	if existing.IsAuction() && s.auctionParamsChanged(existing, draft) {
		n, err := s.ledger.CountBids(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("count bids for %s: %w", existing.ID, err)
		}
		if n > 0 {
			return nil, domain.ErrListingLocked
		}
	}

	existing.Kind = draft.Kind
	existing.SalePrice = draft.SalePrice
	existing.TradeAccepts = draft.TradeAccepts
	existing.StartingPrice = draft.StartingPrice
	existing.AllowCents = draft.AllowCents
	existing.StartTime = draft.StartTime
	existing.EndTime = draft.EndTime
	existing.UpdatedAt = s.now().UTC()

	if err := s.listings.UpdateListing(ctx, existing); err != nil {
		return nil, fmt.Errorf("update listing %s: %w", existing.ID, err)
	}

	s.log.Info("Listing updated", "listing_id", existing.ID)
	return existing, nil
}

func (s *ListingService) auctionParamsChanged(existing *domain.Listing, draft ListingDraft) bool {
	return existing.Kind != draft.Kind ||
		existing.StartingPrice != draft.StartingPrice ||
		existing.AllowCents != draft.AllowCents ||
		!equalTimePtr(existing.StartTime, draft.StartTime) ||
		!equalTimePtr(existing.EndTime, draft.EndTime)
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *ListingService) validateDraft(draft ListingDraft) error {
	if draft.OwnerID == "" || draft.ItemID == "" {
		return fmt.Errorf("%w: missing owner or item", ErrInvalidDraft)
	}
	if !draft.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDraft, draft.Kind)
	}
	if draft.Kind != domain.KindAuction {
		return nil
	}
	if draft.StartingPrice < 0 {
		return fmt.Errorf("%w: negative starting price", ErrInvalidDraft)
	}
	if draft.StartTime != nil && draft.EndTime != nil && !draft.EndTime.After(*draft.StartTime) {
		return domain.ErrInvalidWindow
	}
	return nil
}

func (s *ListingService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return listing, nil
}

func (s *ListingService) ListOpen(ctx context.Context, kind domain.ListingKind, limit, offset int) ([]*domain.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	listings, err := s.listings.ListOpenListings(ctx, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list open listings: %w", err)
	}
	return listings, nil
}
