package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diecast-trading/internal/domain"
	"diecast-trading/pkg/logger"
)

// Finalizer closes auctions whose end time has passed: selects the winning
// bid, moves the listing to sold or canceled exactly once, and notifies the
// seller. Candidates are processed independently; one failure never aborts
// the rest of the batch.
type Finalizer struct {
	listings    domain.ListingRepository
	ledger      domain.BidLedger
	contacts    domain.ContactResolver
	notifier    domain.OutcomeNotifier
	lock        domain.FinalizeLock
	highBids    domain.HighBidCache
	events      domain.EventPublisher
	itemTimeout time.Duration
	log         logger.Logger
	now         func() time.Time
}

func NewFinalizer(
	listings domain.ListingRepository,
	ledger domain.BidLedger,
	contacts domain.ContactResolver,
	notifier domain.OutcomeNotifier,
	lock domain.FinalizeLock,
	highBids domain.HighBidCache,
	events domain.EventPublisher,
	itemTimeout time.Duration,
	log logger.Logger,
) *Finalizer {
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	return &Finalizer{
		listings:    listings,
		ledger:      ledger,
		contacts:    contacts,
		notifier:    notifier,
		lock:        lock,
		highBids:    highBids,
		events:      events,
		itemTimeout: itemTimeout,
		log:         log,
		now:         time.Now,
	}
}

// FinalizeDue sweeps every open auction past its end time. The batch fails
// only when the candidate query itself fails; per-candidate outcomes,
// including failures, come back in the result slice.
func (f *Finalizer) FinalizeDue(ctx context.Context) ([]domain.FinalizationResult, error) {
	due, err := f.listings.GetDueAuctions(ctx, f.now())
	if err != nil {
		return nil, fmt.Errorf("query due auctions: %w", err)
	}

	results := make([]domain.FinalizationResult, 0, len(due))
	for _, listing := range due {
		results = append(results, f.finalizeOne(ctx, listing))
	}
	return results, nil
}

func (f *Finalizer) finalizeOne(parent context.Context, listing *domain.Listing) domain.FinalizationResult {
	ctx, cancel := context.WithTimeout(parent, f.itemTimeout)
	defer cancel()

	result := domain.FinalizationResult{ListingID: listing.ID}

	if f.lock != nil {
		ok, err := f.lock.Acquire(ctx, listing.ID)
		if err != nil {
			f.log.Warn("Finalize lock unavailable", "listing_id", listing.ID, "error", err)
		} else if !ok {
			// Another sweep holds this listing; the status check-and-set
			// below would refuse anyway.
			result.Skipped = true
			return result
		} else {
			defer f.lock.Release(ctx, listing.ID)
		}
	}

	winner, err := f.ledger.HighestBid(ctx, listing.ID)
	if err != nil && !errors.Is(err, domain.ErrNoBids) {
		result.Err = fmt.Sprintf("read winning bid: %v", err)
		return result
	}

	to := domain.StatusCanceled
	if winner != nil {
		to = domain.StatusSold
	}

	transitioned, err := f.listings.CloseListing(ctx, listing.ID, to)
	if err != nil {
		result.Err = fmt.Sprintf("close listing: %v", err)
		return result
	}
	if !transitioned {
		// Already left open: a previous run finished this one.
		result.Skipped = true
		return result
	}

	result.Status = to
	outcome := &domain.Outcome{ListingID: listing.ID, Status: to}
	if winner != nil {
		outcome.WinnerID = winner.BidderID
		outcome.Amount = winner.Amount
		result.WinnerID = winner.BidderID
		result.Amount = winner.Amount
	}

	f.log.Info("Auction finalized",
		"listing_id", listing.ID, "status", to, "winner_id", outcome.WinnerID)

	// Everything past the transition is best effort.
	f.cleanup(ctx, listing.ID, to)
	f.notify(ctx, listing, outcome)

	return result
}

func (f *Finalizer) cleanup(ctx context.Context, listingID string, to domain.ListingStatus) {
	if f.highBids != nil {
		if err := f.highBids.DropListing(ctx, listingID); err != nil {
			f.log.Warn("Failed to drop high-bid cache", "listing_id", listingID, "error", err)
		}
	}
	if f.events != nil {
		eventType := domain.EventListingCanceled
		if to == domain.StatusSold {
			eventType = domain.EventListingSold
		}
		event := &domain.ListingEvent{
			Type:      eventType,
			ListingID: listingID,
			Timestamp: f.now().UTC(),
		}
		if err := f.events.PublishListingEvent(ctx, event); err != nil {
			f.log.Warn("Failed to publish finalize event", "listing_id", listingID, "error", err)
		}
	}
}

// notify resolves the seller's (and winner's) contact and dispatches the
// outcome email. Failures are logged and swallowed: the state transition is
// already durable and must not depend on delivery.
func (f *Finalizer) notify(ctx context.Context, listing *domain.Listing, outcome *domain.Outcome) {
	if f.notifier == nil || f.contacts == nil {
		return
	}

	seller, err := f.contacts.ResolveContact(ctx, listing.OwnerID)
	if err != nil {
		f.log.Warn("Failed to resolve seller contact", "listing_id", listing.ID, "error", err)
		return
	}
	if seller == nil || seller.Email == "" {
		return
	}

	var winner *domain.Contact
	if outcome.HasWinner() {
		winner, err = f.contacts.ResolveContact(ctx, outcome.WinnerID)
		if err != nil {
			f.log.Warn("Failed to resolve winner contact", "listing_id", listing.ID, "error", err)
			winner = nil
		}
	}

	if err := f.notifier.NotifyOutcome(ctx, seller, winner, outcome); err != nil {
		f.log.Warn("Failed to send outcome notification", "listing_id", listing.ID, "error", err)
	}
}
