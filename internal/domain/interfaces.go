package domain

import (
	"context"
	"time"
)

// Repository interfaces
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, listingID string) (*Listing, error)
	GetOpenListingForItem(ctx context.Context, ownerID, itemID string) (*Listing, error)
	UpdateListing(ctx context.Context, listing *Listing) error
	ListOpenListings(ctx context.Context, kind ListingKind, limit, offset int) ([]*Listing, error)
	GetDueAuctions(ctx context.Context, now time.Time) ([]*Listing, error)
	// CloseListing atomically moves a listing out of StatusOpen. It returns
	// false when the row already left open, which makes finalization
	// idempotent across concurrent sweeps.
	CloseListing(ctx context.Context, listingID string, to ListingStatus) (bool, error)
}

// BidLedger is the append-only record of bids per listing. AppendBid must
// re-check the increment rules against the freshest committed high bid and
// fail with ErrBidConflict when a concurrent bid raced past validation.
type BidLedger interface {
	AppendBid(ctx context.Context, bid *Bid) error
	HighestBid(ctx context.Context, listingID string) (*Bid, error)
	CountBids(ctx context.Context, listingID string) (int, error)
	ListBids(ctx context.Context, listingID string, before time.Time, limit int) ([]*Bid, error)
}

// ContactResolver looks up the notification address for an account.
// Absence is not an error: a nil Contact with a nil error means unknown.
type ContactResolver interface {
	ResolveContact(ctx context.Context, accountID string) (*Contact, error)
}

// OutcomeNotifier delivers the auction outcome to the seller. Best effort;
// the finalizer never rolls back a state transition on notification failure.
type OutcomeNotifier interface {
	NotifyOutcome(ctx context.Context, seller, winner *Contact, outcome *Outcome) error
}

// Cache interfaces
type HighBidCache interface {
	InitializeListing(ctx context.Context, listingID string, startingPrice float64) error
	// AdvanceHighBid only moves the cached amount forward; a stale write
	// loses and returns false.
	AdvanceHighBid(ctx context.Context, listingID, bidderID string, amount float64) (bool, error)
	GetHighBid(ctx context.Context, listingID string) (*CachedHighBid, error)
	DropListing(ctx context.Context, listingID string) error
}

// FinalizeLock keeps two sweeps from working the same listing at once.
// Purely an optimization: correctness rests on CloseListing's check-and-set.
type FinalizeLock interface {
	Acquire(ctx context.Context, listingID string) (bool, error)
	Release(ctx context.Context, listingID string) error
}

// Event interfaces
type EventPublisher interface {
	PublishListingEvent(ctx context.Context, event *ListingEvent) error
}

type EventSubscriber interface {
	SubscribeToListingEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *ListingEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type ListingFeedConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, listingID string, conn ListingFeedConnection) error
	UnregisterConnection(userID, listingID string) error
	BroadcastToListing(listingID string, message interface{}) error
	CloseListingConnections(listingID string) error
}
