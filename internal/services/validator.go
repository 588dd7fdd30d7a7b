package services

import (
	"time"

	"diecast-trading/internal/domain"
)

// BidValidator decides whether a proposed bid is acceptable given the
// listing's public state. Pure: no I/O, no side effects. The caller owns
// the atomic re-read-and-commit against the ledger.
type BidValidator struct{}

func NewBidValidator() *BidValidator {
	return &BidValidator{}
}

// Validate applies the rejection rules in order; the first failure wins.
// currentHighest must already be resolved by the caller: the highest
// recorded bid amount, or the starting price when no bids exist.
func (v *BidValidator) Validate(listing *domain.Listing, currentHighest, amount float64, bidderID string, now time.Time) error {
	if !listing.IsAuction() {
		return domain.ErrListingNotFound
	}
	if listing.Status != domain.StatusOpen {
		return domain.ErrAuctionClosed
	}
	if listing.StartTime != nil && now.Before(*listing.StartTime) {
		return domain.ErrAuctionNotStarted
	}
	if listing.EndTime != nil && now.After(*listing.EndTime) {
		return domain.ErrAuctionClosed
	}
	if bidderID == listing.OwnerID {
		return domain.ErrOwnerCannotBid
	}
	if !listing.AllowCents && !domain.IsWholeUnit(amount) {
		return domain.ErrCentsNotAllowed
	}
	if amount < domain.MinimumAcceptable(currentHighest, listing.AllowCents) {
		return domain.ErrBidTooLow
	}
	return nil
}

// MinimumFor returns the smallest amount Validate would accept for the
// listing against the given high bid, nil meaning no bids yet.
func (v *BidValidator) MinimumFor(listing *domain.Listing, highest *domain.Bid) float64 {
	base := listing.StartingPrice
	if highest != nil {
		base = highest.Amount
	}
	return domain.MinimumAcceptable(base, listing.AllowCents)
}
