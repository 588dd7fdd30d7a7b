package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"diecast-trading/internal/domain"
	"diecast-trading/internal/services"
	"diecast-trading/pkg/logger"

	"github.com/labstack/echo/v4"
)

type TradingHandler struct {
	listings     *services.ListingService
	bids         *services.BidService
	finalizer    *services.Finalizer
	triggerToken string
	log          logger.Logger
}

func NewTradingHandler(
	listings *services.ListingService,
	bids *services.BidService,
	finalizer *services.Finalizer,
	triggerToken string,
	log logger.Logger,
) *TradingHandler {
	return &TradingHandler{
		listings:     listings,
		bids:         bids,
		finalizer:    finalizer,
		triggerToken: triggerToken,
		log:          log,
	}
}

func (h *TradingHandler) Register(g *echo.Group) {
	g.POST("/listings", h.UpsertListing)
	g.GET("/listings", h.ListOpen)
	g.GET("/listings/:id", h.GetListing)
	g.GET("/listings/:id/bids", h.ListBids)
	g.POST("/listings/:id/bids", h.PlaceBid)
	g.POST("/auctions/finalize", h.FinalizeDue)
}

type upsertListingRequest struct {
	OwnerID       string     `json:"owner_id"`
	ItemID        string     `json:"item_id"`
	Kind          string     `json:"kind"`
	SalePrice     *float64   `json:"sale_price,omitempty"`
	TradeAccepts  string     `json:"trade_accepts,omitempty"`
	StartingPrice float64    `json:"starting_price"`
	AllowCents    bool       `json:"allow_cents"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
}

type listingResponse struct {
	ListingID     string     `json:"listing_id"`
	OwnerID       string     `json:"owner_id"`
	ItemID        string     `json:"item_id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	SalePrice     *float64   `json:"sale_price,omitempty"`
	TradeAccepts  string     `json:"trade_accepts,omitempty"`
	StartingPrice float64    `json:"starting_price"`
	AllowCents    bool       `json:"allow_cents"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	return listingResponse{
		ListingID:     l.ID,
		OwnerID:       l.OwnerID,
		ItemID:        l.ItemID,
		Kind:          string(l.Kind),
		Status:        string(l.Status),
		SalePrice:     l.SalePrice,
		TradeAccepts:  l.TradeAccepts,
		StartingPrice: l.StartingPrice,
		AllowCents:    l.AllowCents,
		StartTime:     l.StartTime,
		EndTime:       l.EndTime,
		CreatedAt:     l.CreatedAt,
	}
}

func (h *TradingHandler) UpsertListing(c echo.Context) error {
	var req upsertListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	listing, err := h.listings.UpsertListing(c.Request().Context(), services.ListingDraft{
		OwnerID:       req.OwnerID,
		ItemID:        req.ItemID,
		Kind:          domain.ListingKind(req.Kind),
		SalePrice:     req.SalePrice,
		TradeAccepts:  req.TradeAccepts,
		StartingPrice: req.StartingPrice,
		AllowCents:    req.AllowCents,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDraft), errors.Is(err, domain.ErrInvalidWindow):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrNotOwner):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrListingLocked), errors.Is(err, domain.ErrListingNotOpen):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		h.log.Error("Failed to upsert listing", "item_id", req.ItemID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save listing"})
	}

	return c.JSON(http.StatusCreated, toListingResponse(listing))
}

func (h *TradingHandler) GetListing(c echo.Context) error {
	ctx := c.Request().Context()

	listing, err := h.listings.GetListing(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
		}
		h.log.Error("Failed to get listing", "listing_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}

	resp := map[string]interface{}{"listing": toListingResponse(listing)}
	if listing.IsAuction() {
		if high, err := h.bids.CurrentHigh(ctx, listing); err == nil && high != nil {
			resp["current_high_bid"] = map[string]interface{}{
				"amount":    high.Amount,
				"bidder_id": high.BidderID,
			}
		}
		if listing.Status == domain.StatusOpen {
			if min, err := h.bids.NextMinimum(ctx, listing); err == nil {
				resp["minimum_next_bid"] = min
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *TradingHandler) ListOpen(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	kind := domain.ListingKind(c.QueryParam("kind"))
	if kind != "" && !kind.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown listing kind"})
	}

	listings, err := h.listings.ListOpen(c.Request().Context(), kind, limit, offset)
	if err != nil {
		h.log.Error("Failed to list open listings", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list listings"})
	}

	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"listings": out})
}

type placeBidRequest struct {
	BidderID string  `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

func (h *TradingHandler) PlaceBid(c echo.Context) error {
	ctx := c.Request().Context()
	listingID := c.Param("id")

	var req placeBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.BidderID == "" || req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bidder_id and a positive amount are required"})
	}

	bid, err := h.bids.PlaceBid(ctx, listingID, req.BidderID, req.Amount)
	if err != nil {
		return h.rejectBid(c, listingID, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"bid_id":    bid.ID,
		"amount":    bid.Amount,
		"placed_at": bid.PlacedAt,
	})
}

// rejectBid maps every rejection to a structured body carrying the reason
// and, where it helps, the next valid amount.
func (h *TradingHandler) rejectBid(c echo.Context, listingID string, err error) error {
	type rejection struct {
		Reason            string   `json:"reason"`
		Message           string   `json:"message"`
		MinimumAcceptable *float64 `json:"minimum_acceptable,omitempty"`
	}

	withMinimum := func(r rejection) rejection {
		listing, lerr := h.listings.GetListing(c.Request().Context(), listingID)
		if lerr != nil || !listing.IsAuction() {
			return r
		}
		min, merr := h.bids.NextMinimum(c.Request().Context(), listing)
		if merr != nil {
			return r
		}
		r.MinimumAcceptable = &min
		return r
	}

	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		return c.JSON(http.StatusNotFound, rejection{Reason: "not_found", Message: "auction not found"})
	case errors.Is(err, domain.ErrAuctionClosed):
		return c.JSON(http.StatusConflict, rejection{Reason: "closed", Message: "auction is closed"})
	case errors.Is(err, domain.ErrAuctionNotStarted):
		return c.JSON(http.StatusConflict, rejection{Reason: "not_started", Message: "auction has not started yet"})
	case errors.Is(err, domain.ErrOwnerCannotBid):
		return c.JSON(http.StatusForbidden, rejection{Reason: "owner_cannot_bid", Message: "you cannot bid on your own auction"})
	case errors.Is(err, domain.ErrBidTooLow):
		return c.JSON(http.StatusUnprocessableEntity, withMinimum(rejection{
			Reason: "bid_too_low", Message: "bid is below the minimum acceptable amount"}))
	case errors.Is(err, domain.ErrCentsNotAllowed):
		return c.JSON(http.StatusUnprocessableEntity, withMinimum(rejection{
			Reason: "cents_not_allowed", Message: "this auction only accepts whole amounts"}))
	case errors.Is(err, domain.ErrBidConflict):
		return c.JSON(http.StatusConflict, withMinimum(rejection{
			Reason: "conflict", Message: "someone else bid first, please retry"}))
	}

	h.log.Error("Failed to place bid", "listing_id", listingID, "error", err)
	return c.JSON(http.StatusInternalServerError, rejection{Reason: "internal", Message: "failed to place bid"})
}

func (h *TradingHandler) ListBids(c echo.Context) error {
	listingID := c.Param("id")

	var before time.Time
	if raw := c.QueryParam("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "before must be RFC3339"})
		}
		before = parsed
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	bids, err := h.bids.BidHistory(c.Request().Context(), listingID, before, limit)
	if err != nil {
		h.log.Error("Failed to list bids", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list bids"})
	}

	type bidResponse struct {
		BidID    string    `json:"bid_id"`
		BidderID string    `json:"bidder_id"`
		Amount   float64   `json:"amount"`
		PlacedAt time.Time `json:"placed_at"`
	}
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidResponse{BidID: b.ID, BidderID: b.BidderID, Amount: b.Amount, PlacedAt: b.PlacedAt})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": out})
}

func (h *TradingHandler) FinalizeDue(c echo.Context) error {
	if h.triggerToken != "" {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != h.triggerToken {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid trigger token"})
		}
	}

	results, err := h.finalizer.FinalizeDue(c.Request().Context())
	if err != nil {
		h.log.Error("Finalize trigger failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "finalize sweep failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"processed": len(results),
		"results":   results,
	})
}
