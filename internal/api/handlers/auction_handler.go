package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
)

// AuctionHandler is the HTTP face of the bidding engine. Identity
// (seller_id, bidder_id) arrives pre-authenticated from the gateway.
type AuctionHandler struct {
	auctionManager *services.AuctionManager
	bidService     *services.BidService
	log            logger.Logger
}

func NewAuctionHandler(auctionManager *services.AuctionManager, bidService *services.BidService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		bidService:     bidService,
		log:            log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions/:id", h.GetAuction)
	g.POST("/auctions/:id/activate", h.ActivateAuction)
	g.POST("/auctions/:id/cancel", h.CancelAuction)
	g.POST("/auctions/:id/end", h.EndAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.GET("/auctions/:id/bids", h.ListBids)
	g.GET("/auctions/:id/bids/highest", h.HighestBid)
	g.GET("/auctions/:id/stats", h.BidStatistics)
}

type CreateAuctionRequest struct {
	SellerID      string    `json:"seller_id"`
	StartingPrice float64   `json:"starting_price"`
	ReservePrice  float64   `json:"reserve_price"`
	BidIncrement  float64   `json:"bid_increment"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type SellerActionRequest struct {
	SellerID string `json:"seller_id"`
}

type PlaceBidRequest struct {
	BidderID   string  `json:"bidder_id"`
	Amount     float64 `json:"amount"`
	IsAutoBid  bool    `json:"is_auto_bid"`
	MaxAutoBid float64 `json:"max_auto_bid"`
}

type AuctionResponse struct {
	AuctionID     string    `json:"auction_id"`
	SellerID      string    `json:"seller_id"`
	StartingPrice float64   `json:"starting_price"`
	ReservePrice  float64   `json:"reserve_price,omitempty"`
	CurrentBid    float64   `json:"current_bid"`
	BidIncrement  float64   `json:"bid_increment"`
	MinimumBid    float64   `json:"minimum_bid"`
	LeaderID      string    `json:"leader_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	WinnerID      string    `json:"winner_id,omitempty"`
	TotalBids     int       `json:"total_bids"`
}

type BidResponse struct {
	BidID      string    `json:"bid_id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	IsAutoBid  bool      `json:"is_auto_bid"`
	MaxAutoBid float64   `json:"max_auto_bid,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid         BidResponse     `json:"bid"`
	Synthesized []BidResponse   `json:"synthesized,omitempty"`
	Auction     AuctionResponse `json:"auction"`
	ReserveMet  bool            `json:"reserve_met"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     a.ID,
		SellerID:      a.SellerID,
		StartingPrice: a.StartingPrice,
		ReservePrice:  a.ReservePrice,
		CurrentBid:    a.CurrentBid,
		BidIncrement:  a.BidIncrement,
		MinimumBid:    a.MinimumBid(),
		LeaderID:      a.LeaderID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status.String(),
		WinnerID:      a.WinnerID,
		TotalBids:     a.TotalBids,
	}
}

func toBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		BidID:      b.ID,
		AuctionID:  b.AuctionID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		IsAutoBid:  b.IsAutoBid,
		MaxAutoBid: b.MaxAutoBid,
		CreatedAt:  b.CreatedAt,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "invalid request body"})
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), services.CreateAuctionInput{
		SellerID:      req.SellerID,
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		BidIncrement:  req.BidIncrement,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctionManager.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) ActivateAuction(c echo.Context) error {
	var req SellerActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "invalid request body"})
	}

	auction, err := h.auctionManager.Activate(c.Request().Context(), c.Param("id"), req.SellerID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	var req SellerActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "invalid request body"})
	}

	auction, err := h.auctionManager.CancelAuction(c.Request().Context(), c.Param("id"), req.SellerID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

// EndAuction exists for operational use; the sweeper normally drives
// completion.
func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auction, err := h.auctionManager.EndAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "message": "invalid request body"})
	}

	result, err := h.bidService.PlaceBid(c.Request().Context(), services.PlaceBidInput{
		AuctionID:  c.Param("id"),
		BidderID:   req.BidderID,
		Amount:     req.Amount,
		IsAutoBid:  req.IsAutoBid,
		MaxAutoBid: req.MaxAutoBid,
		IP:         c.RealIP(),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	resp := PlaceBidResponse{
		Bid:        toBidResponse(result.Bid),
		Auction:    toAuctionResponse(result.Auction),
		ReserveMet: result.ReserveMet,
	}
	for _, synth := range result.Synthesized {
		resp.Synthesized = append(resp.Synthesized, toBidResponse(synth))
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	bids, err := h.bidService.GetBidHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	resp := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, toBidResponse(bid))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) HighestBid(c echo.Context) error {
	bid, err := h.bidService.GetHighestBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	if bid == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no_bids", "message": "auction has no bids"})
	}
	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *AuctionHandler) BidStatistics(c echo.Context) error {
	stats, err := h.bidService.GetBidStatistics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// writeError maps the engine's taxonomy onto HTTP. Every rejection
// carries the machine-checkable reason plus a human-readable message;
// bid_too_low also carries the exact minimum for inline re-prompting.
func (h *AuctionHandler) writeError(c echo.Context, err error) error {
	body := map[string]interface{}{
		"error":   domain.ReasonCode(err),
		"message": err.Error(),
	}
	if domain.Retryable(err) {
		body["retryable"] = true
	}

	var tooLow *domain.BidTooLowError
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &tooLow):
		body["minimum_bid"] = tooLow.Minimum
	case errors.Is(err, domain.ErrNotSeller):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrBusy):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStorage):
		h.log.Error("request failed on storage", "path", c.Path(), "error", err)
		status = http.StatusInternalServerError
	case errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrAuctionEnded),
		errors.Is(err, domain.ErrSellerBid),
		errors.Is(err, domain.ErrInvalidAutoBid):
		// default status
	default:
		status = http.StatusBadRequest
	}
	return c.JSON(status, body)
}
