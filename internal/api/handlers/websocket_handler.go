package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"auction-marketplace/internal/domain"
	ws "auction-marketplace/internal/infrastructure/websocket"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is the gateway's job
	},
}

// WebSocketHandler joins a user to an auction's watcher room. Watchers
// receive the auction's events in commit order and may place bids over
// the socket.
type WebSocketHandler struct {
	bidService     *services.BidService
	auctionManager *services.AuctionManager
	connManager    domain.ConnectionManager
	log            logger.Logger
}

func NewWebSocketHandler(bidService *services.BidService, auctionManager *services.AuctionManager,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:     bidService,
		auctionManager: auctionManager,
		connManager:    connManager,
		log:            log,
	}
}

func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.auctionManager.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "auction_not_found"})
	}
	if auction.Status.Terminal() {
		return c.JSON(http.StatusGone, map[string]string{"error": "auction_closed"})
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err)
		return nil
	}

	wsConn := ws.NewWebSocketConnection(conn, userID, auctionID, h.log)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("failed to register connection", "error", err)
		conn.Close()
		return nil
	}

	go h.readLoop(conn, wsConn, userID, auctionID)
	return nil
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn, wsConn *ws.WebSocketConnection, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, auctionID)
		wsConn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(wsConn, userID, auctionID, msg)
		case "ping":
			wsConn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *ws.WebSocketConnection, userID, auctionID string, msg map[string]interface{}) {
	amount, ok := msg["amount"].(float64)
	if !ok {
		conn.Send(map[string]string{"type": "error", "message": "invalid amount"})
		return
	}

	isAuto, _ := msg["is_auto_bid"].(bool)
	maxAuto, _ := msg["max_auto_bid"].(float64)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := h.bidService.PlaceBid(ctx, services.PlaceBidInput{
		AuctionID:  auctionID,
		BidderID:   userID,
		Amount:     amount,
		IsAutoBid:  isAuto,
		MaxAutoBid: maxAuto,
	})
	if err != nil {
		conn.Send(map[string]interface{}{
			"type":    "bid_rejected",
			"reason":  domain.ReasonCode(err),
			"message": err.Error(),
		})
	}
	// Acceptance reaches the watcher through the room broadcast.
}
