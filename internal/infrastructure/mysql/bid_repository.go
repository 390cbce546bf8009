package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-marketplace/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

const bidColumns = `id, auction_id, bidder_id, amount, is_auto_bid, max_auto_bid, ip, created_at`

func (r *MySQLBidRepository) ListBidsByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bids: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount,
			&bid.IsAutoBid, &bid.MaxAutoBid, &bid.IP, &bid.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scan bid: %v", domain.ErrStorage, err)
		}
		bids = append(bids, &bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list bids: %v", domain.ErrStorage, err)
	}
	return bids, nil
}

func (r *MySQLBidRepository) HighestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount,
		&bid.IsAutoBid, &bid.MaxAutoBid, &bid.IP, &bid.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: highest bid: %v", domain.ErrStorage, err)
	}
	return &bid, nil
}

// ListOutstandingAutoBids collapses the auto-bid log into one ceiling per
// bidder: their highest registered maximum, dated by the earliest bid
// that registered it so tied ceilings keep first-bidder priority.
func (r *MySQLBidRepository) ListOutstandingAutoBids(ctx context.Context, auctionID, excludingBidder string) ([]*domain.ProxyBid, error) {
	query := `
        SELECT b.bidder_id, b.max_auto_bid, MIN(b.created_at) AS placed_at
        FROM bids b
        JOIN (
            SELECT bidder_id, MAX(max_auto_bid) AS max_auto_bid
            FROM bids
            WHERE auction_id = ? AND is_auto_bid = 1 AND bidder_id <> ?
            GROUP BY bidder_id
        ) m ON m.bidder_id = b.bidder_id AND m.max_auto_bid = b.max_auto_bid
        WHERE b.auction_id = ? AND b.is_auto_bid = 1
        GROUP BY b.bidder_id, b.max_auto_bid
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID, excludingBidder, auctionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list auto bids: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var proxies []*domain.ProxyBid
	for rows.Next() {
		var proxy domain.ProxyBid
		if err := rows.Scan(&proxy.BidderID, &proxy.MaxAutoBid, &proxy.PlacedAt); err != nil {
			return nil, fmt.Errorf("%w: scan auto bid: %v", domain.ErrStorage, err)
		}
		proxies = append(proxies, &proxy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list auto bids: %v", domain.ErrStorage, err)
	}
	return proxies, nil
}

func (r *MySQLBidRepository) BidStatistics(ctx context.Context, auctionID string) (*domain.BidStatistics, error) {
	query := `
        SELECT COUNT(*), COUNT(DISTINCT bidder_id),
               COALESCE(AVG(amount), 0), COALESCE(MIN(amount), 0), COALESCE(MAX(amount), 0)
        FROM bids
        WHERE auction_id = ?
    `

	var stats domain.BidStatistics
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&stats.Count, &stats.UniqueBidders, &stats.Average, &stats.Min, &stats.Max)
	if err != nil {
		return nil, fmt.Errorf("%w: bid statistics: %v", domain.ErrStorage, err)
	}
	return &stats, nil
}
