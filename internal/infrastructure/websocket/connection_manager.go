package websocket

import (
	"context"
	"sync"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

// ConnectionManager tracks watcher-room membership: which users hold open
// sockets on which auctions. It is the delivery surface for per-auction
// broadcasts and per-user notifications.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[auctionID][userID] = conn

	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Debug("connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, userID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}
	cm.dropUserConnLocked(userID, auctionID)

	cm.log.Debug("connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// dropUserConnLocked removes the user's connections for one auction;
// callers hold the write lock.
func (cm *ConnectionManager) dropUserConnLocked(userID, auctionID string) {
	userConnections, exists := cm.userConns[userID]
	if !exists {
		return
	}

	var remaining []domain.WebSocketConnection
	for _, conn := range userConnections {
		if conn.AuctionID() != auctionID {
			remaining = append(remaining, conn)
		}
	}

	if len(remaining) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = remaining
	}
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists {
		return nil
	}

	for userID, conn := range auctionConns {
		if err := conn.Close(); err != nil {
			cm.log.Warn("failed to close connection",
				"user_id", userID, "auction_id", auctionID, "error", err)
		}
		cm.dropUserConnLocked(userID, auctionID)
	}
	delete(cm.connections, auctionID)

	cm.log.Info("watcher room closed", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) connectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) connectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return append([]domain.WebSocketConnection(nil), cm.userConns[userID]...)
}

func (cm *ConnectionManager) BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error {
	for _, conn := range cm.connectionsForAuction(auctionID) {
		if err := conn.Send(message); err != nil {
			cm.log.Warn("failed to send to watcher",
				"user_id", conn.UserID(), "auction_id", auctionID, "error", err)
			// Continue to other connections
		}
	}
	return nil
}

func (cm *ConnectionManager) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	for _, conn := range cm.connectionsForUser(userID) {
		if err := conn.Send(message); err != nil {
			cm.log.Warn("failed to notify user", "user_id", userID, "error", err)
		}
	}
	return nil
}
