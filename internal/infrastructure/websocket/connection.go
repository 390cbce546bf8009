package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"auction-marketplace/pkg/logger"
)

// WebSocketConnection wraps one watcher's socket. gorilla/websocket
// allows a single concurrent writer, so Send serializes writes.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
	log       logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		log:       log,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}
