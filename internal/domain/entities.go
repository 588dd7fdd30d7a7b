package domain

import (
	"time"
)

type ListingKind string

const (
	KindSell        ListingKind = "sell"
	KindTrade       ListingKind = "trade"
	KindAuction     ListingKind = "auction"
	KindSellOrTrade ListingKind = "sell_or_trade"
)

func (k ListingKind) Valid() bool {
	switch k {
	case KindSell, KindTrade, KindAuction, KindSellOrTrade:
		return true
	}
	return false
}

type ListingStatus string

const (
	StatusOpen     ListingStatus = "open"
	StatusReserved ListingStatus = "reserved"
	StatusSold     ListingStatus = "sold"
	StatusCanceled ListingStatus = "canceled"
)

// Listing is an item a collector has put up for sale, trade or auction.
// The auction fields are only meaningful when Kind is KindAuction.
type Listing struct {
	ID           string
	OwnerID      string
	ItemID       string
	Kind         ListingKind
	Status       ListingStatus
	SalePrice    *float64
	TradeAccepts string

	StartingPrice float64
	AllowCents    bool
	StartTime     *time.Time
	EndTime       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *Listing) IsAuction() bool {
	return l != nil && l.Kind == KindAuction
}

// Bid is an immutable, append-only record of an amount offered against an
// auction listing. Bids are never updated or deleted.
type Bid struct {
	ID        string
	ListingID string
	BidderID  string
	Amount    float64
	PlacedAt  time.Time
}

// Contact is the notification address resolved for an account. A missing
// profile or empty email simply means nothing can be sent.
type Contact struct {
	AccountID   string
	DisplayName string
	Email       string
}

// Outcome is the result of finalizing a single auction.
type Outcome struct {
	ListingID string
	Status    ListingStatus
	WinnerID  string
	Amount    float64
}

func (o *Outcome) HasWinner() bool {
	return o != nil && o.WinnerID != ""
}

// FinalizationResult reports what happened to one candidate during a sweep.
type FinalizationResult struct {
	ListingID string        `json:"listing_id"`
	Status    ListingStatus `json:"status,omitempty"`
	WinnerID  string        `json:"winner_id,omitempty"`
	Amount    float64       `json:"amount,omitempty"`
	Skipped   bool          `json:"skipped,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// CachedHighBid is the redis fast-path snapshot of a listing's current high
// bid. The MySQL ledger stays authoritative; this exists for display and
// fan-out only.
type CachedHighBid struct {
	ListingID string
	Amount    float64
	BidderID  string
	UpdatedAt time.Time
}

type ListingEventType string

const (
	EventBidAccepted     ListingEventType = "bid_accepted"
	EventListingSold     ListingEventType = "listing_sold"
	EventListingCanceled ListingEventType = "listing_canceled"
)

// Terminal reports whether the event ends the listing's live feed.
func (t ListingEventType) Terminal() bool {
	return t == EventListingSold || t == EventListingCanceled
}

// ListingEvent is published on redis whenever a bid is accepted or a listing
// reaches a terminal status, and fanned out to websocket subscribers.
type ListingEvent struct {
	Type      ListingEventType `json:"type"`
	ListingID string           `json:"listing_id"`
	BidderID  string           `json:"bidder_id,omitempty"`
	Amount    float64          `json:"amount,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
