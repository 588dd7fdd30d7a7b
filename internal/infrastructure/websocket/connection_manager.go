package websocket

import (
	"encoding/json"
	"sync"

	"diecast-trading/internal/domain"
	"diecast-trading/pkg/logger"
)

// ConnectionManager tracks live-feed subscriptions per listing. One
// connection per (user, listing) pair; broadcasts are fan-out with
// per-connection failures isolated.
type ConnectionManager struct {
	connections map[string]map[string]domain.ListingFeedConnection // listingID -> userID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.ListingFeedConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, listingID string, conn domain.ListingFeedConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[listingID] == nil {
		cm.connections[listingID] = make(map[string]domain.ListingFeedConnection)
	}
	if prev, exists := cm.connections[listingID][userID]; exists {
		prev.Close()
	}
	cm.connections[listingID][userID] = conn

	cm.log.Info("Connection registered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if listingConns, exists := cm.connections[listingID]; exists {
		delete(listingConns, userID)
		if len(listingConns) == 0 {
			delete(cm.connections, listingID)
		}
	}

	cm.log.Info("Connection unregistered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) BroadcastToListing(listingID string, message interface{}) error {
	connections := cm.connectionsFor(listingID)
	if len(connections) == 0 {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"listing_id", listingID, "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (cm *ConnectionManager) CloseListingConnections(listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if listingConns, exists := cm.connections[listingID]; exists {
		for userID, conn := range listingConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID,
					"listing_id", listingID, "error", err)
			}
		}
		delete(cm.connections, listingID)
	}

	cm.log.Info("Connections closed for listing", "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) connectionsFor(listingID string) []domain.ListingFeedConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.ListingFeedConnection
	for _, conn := range cm.connections[listingID] {
		connections = append(connections, conn)
	}
	return connections
}
