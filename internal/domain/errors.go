package domain

import "errors"

// Bid rejection reasons, surfaced verbatim to the bidder.
var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrAuctionClosed     = errors.New("auction closed")
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrOwnerCannotBid    = errors.New("owner cannot bid on own auction")
	ErrBidTooLow         = errors.New("bid below minimum acceptable amount")
	ErrCentsNotAllowed   = errors.New("cent amounts not allowed for this auction")
)

// Ledger and listing lifecycle errors.
var (
	// ErrBidConflict means a concurrent bid won the race at commit time.
	// The caller must re-validate against fresh state, never blindly
	// retry the same amount.
	ErrBidConflict = errors.New("bid conflicts with a newer bid")

	ErrNoBids         = errors.New("no bids recorded for listing")
	ErrNotOwner       = errors.New("account does not own listing")
	ErrListingNotOpen = errors.New("listing is no longer open")
	ErrListingLocked  = errors.New("auction parameters are locked once bids exist")
	ErrInvalidWindow  = errors.New("auction end must be after its start")
)
