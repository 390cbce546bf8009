package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"auction-marketplace/internal/domain"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

const auctionColumns = `id, seller_id, starting_price, reserve_price, current_bid,
bid_increment, leader_id, start_time, end_time, status, winner_id, total_bids,
created_at, updated_at`

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.SellerID, auction.StartingPrice, auction.ReservePrice,
		auction.CurrentBid, auction.BidIncrement, auction.LeaderID,
		auction.StartTime, auction.EndTime, int(auction.Status), auction.WinnerID,
		auction.TotalBids, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create auction: %v", domain.ErrStorage, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("%w: get auction: %v", domain.ErrStorage, err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus, winnerID string) error {
	query := `UPDATE auctions SET status = ?, winner_id = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, int(status), winnerID, time.Now().UTC(), auctionID)
	if err != nil {
		return fmt.Errorf("%w: update auction status: %v", domain.ErrStorage, err)
	}
	return nil
}

// ApplyBidOutcome is the one write path for accepted bids: the bid rows
// and the auction update commit or roll back together. The current_bid
// guard detects any update that slipped in between the caller's read and
// this write.
func (r *MySQLAuctionRepository) ApplyBidOutcome(ctx context.Context, auctionID string,
	expectedBid float64, newBid float64, leaderID string, bids []*domain.Bid) error {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_bid = ?, leader_id = ?, total_bids = total_bids + ?, updated_at = ?
        WHERE id = ? AND current_bid = ?
    `, newBid, leaderID, len(bids), time.Now().UTC(), auctionID, expectedBid)
	if err != nil {
		return fmt.Errorf("%w: update auction: %v", domain.ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", domain.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: auction %s changed underneath the bid", domain.ErrStorage, auctionID)
	}

	for _, bid := range bids {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO bids (id, auction_id, bidder_id, amount, is_auto_bid, max_auto_bid, ip, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        `, bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.IsAutoBid,
			bid.MaxAutoBid, bid.IP, bid.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert bid: %v", domain.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND end_time <= ?`
	return r.listAuctions(ctx, query, int(domain.AuctionActive), now)
}

func (r *MySQLAuctionRepository) ListScheduledStarts(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND start_time <= ?`
	return r.listAuctions(ctx, query, int(domain.AuctionDraft), now)
}

func (r *MySQLAuctionRepository) listAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list auctions: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan auction: %v", domain.ErrStorage, err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list auctions: %v", domain.ErrStorage, err)
	}
	return auctions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int

	err := row.Scan(&auction.ID, &auction.SellerID, &auction.StartingPrice,
		&auction.ReservePrice, &auction.CurrentBid, &auction.BidIncrement,
		&auction.LeaderID, &auction.StartTime, &auction.EndTime, &status,
		&auction.WinnerID, &auction.TotalBids, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	return &auction, nil
}
