package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diecast-trading/internal/domain"
)

type MySQLBidLedger struct {
	db *sql.DB
}

func NewMySQLBidLedger(db *sql.DB) *MySQLBidLedger {
	return &MySQLBidLedger{db: db}
}

// AppendBid commits one bid. The listing row lock linearizes concurrent
// appends on the same listing: the increment rules are re-checked against
// the freshest committed high bid inside the transaction, and a bid that
// raced past validation fails with ErrBidConflict instead of landing stale.
func (r *MySQLBidLedger) AppendBid(ctx context.Context, bid *domain.Bid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		startingPrice float64
		allowCents    bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT starting_price, allow_cents FROM trade_listings WHERE id = ? FOR UPDATE`,
		bid.ListingID).Scan(&startingPrice, &allowCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrListingNotFound
		}
		return err
	}

	var highest sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(amount) FROM trade_bids WHERE listing_id = ?`,
		bid.ListingID).Scan(&highest)
	if err != nil {
		return err
	}

	current := startingPrice
	if highest.Valid {
		current = highest.Float64
	}
	if bid.Amount < domain.MinimumAcceptable(current, allowCents) {
		return domain.ErrBidConflict
	}
	if !allowCents && !domain.IsWholeUnit(bid.Amount) {
		return domain.ErrBidConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trade_bids (id, listing_id, bidder_id, amount, placed_at) VALUES (?, ?, ?, ?, ?)`,
		bid.ID, bid.ListingID, bid.BidderID, bid.Amount, bid.PlacedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// HighestBid returns the winning bid so far: highest amount, earliest
// placed-at on the (anomalous) amount tie.
func (r *MySQLBidLedger) HighestBid(ctx context.Context, listingID string) (*domain.Bid, error) {
	query := `
        SELECT id, listing_id, bidder_id, amount, placed_at
        FROM trade_bids
        WHERE listing_id = ?
        ORDER BY amount DESC, placed_at ASC
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(
		&bid.ID, &bid.ListingID, &bid.BidderID, &bid.Amount, &bid.PlacedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoBids
		}
		return nil, err
	}
	return &bid, nil
}

func (r *MySQLBidLedger) CountBids(ctx context.Context, listingID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_bids WHERE listing_id = ?`, listingID).Scan(&n)
	return n, err
}

func (r *MySQLBidLedger) ListBids(ctx context.Context, listingID string, before time.Time, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT id, listing_id, bidder_id, amount, placed_at
        FROM trade_bids
        WHERE listing_id = ? AND placed_at < ?
        ORDER BY placed_at DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, listingID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.ListingID, &bid.BidderID, &bid.Amount, &bid.PlacedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}
