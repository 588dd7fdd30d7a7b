package websocket

import (
	"encoding/json"
	"sync"

	"diecast-trading/pkg/logger"

	"github.com/gorilla/websocket"
)

// FeedConnection wraps a single gorilla websocket for one subscriber of one
// listing's live feed. Writes are serialized; gorilla allows only one
// concurrent writer.
type FeedConnection struct {
	conn      *websocket.Conn
	userID    string
	listingID string
	writeMu   sync.Mutex
	closed    bool
	log       logger.Logger
}

func NewFeedConnection(conn *websocket.Conn, userID, listingID string, log logger.Logger) *FeedConnection {
	return &FeedConnection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
		log:       log,
	}
}

func (c *FeedConnection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}

	payload, ok := message.([]byte)
	if !ok {
		var err error
		payload, err = json.Marshal(message)
		if err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *FeedConnection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *FeedConnection) UserID() string {
	return c.userID
}

func (c *FeedConnection) ListingID() string {
	return c.listingID
}

// ReadLoop drains client messages until the peer goes away, answering pings.
// The feed is one-way; anything else from the client is ignored.
func (c *FeedConnection) ReadLoop(onClose func()) {
	defer onClose()

	for {
		var msg map[string]interface{}
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			if err := c.Send(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}
