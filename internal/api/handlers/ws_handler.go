package handlers

import (
	"errors"
	"net/http"
	"time"

	"diecast-trading/internal/domain"
	wsinfra "diecast-trading/internal/infrastructure/websocket"
	"diecast-trading/internal/services"
	"diecast-trading/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams listing events to subscribed bidders.
type WebSocketHandler struct {
	listings *services.ListingService
	manager  domain.ConnectionManager
	log      logger.Logger
}

func NewWebSocketHandler(listings *services.ListingService, manager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{listings: listings, manager: manager, log: log}
}

func (h *WebSocketHandler) HandleListingFeed(c echo.Context) error {
	listingID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	listing, err := h.listings.GetListing(c.Request().Context(), listingID)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "listing not found"})
		}
		h.log.Error("Failed to load listing for feed", "listing_id", listingID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load listing"})
	}
	if listing.Status != domain.StatusOpen {
		return c.JSON(http.StatusConflict, map[string]string{"error": "listing is no longer open"})
	}
	if listing.IsAuction() && listing.EndTime != nil && time.Now().After(*listing.EndTime) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "auction has ended"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", "listing_id", listingID, "user_id", userID, "error", err)
		return err
	}

	feed := wsinfra.NewFeedConnection(conn, userID, listingID, h.log)
	if err := h.manager.RegisterConnection(userID, listingID, feed); err != nil {
		h.log.Error("Failed to register feed connection", "listing_id", listingID, "user_id", userID, "error", err)
		feed.Close()
		return nil
	}
	h.log.Info("Feed connection opened", "listing_id", listingID, "user_id", userID)

	go feed.ReadLoop(func() {
		if err := h.manager.UnregisterConnection(userID, listingID); err != nil {
			h.log.Warn("Failed to unregister feed connection", "listing_id", listingID, "user_id", userID, "error", err)
		}
		h.log.Info("Feed connection closed", "listing_id", listingID, "user_id", userID)
	})

	return nil
}
