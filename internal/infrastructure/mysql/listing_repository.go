package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diecast-trading/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLListingRepository struct {
	db *sql.DB
}

func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

const listingColumns = `id, owner_id, item_id, kind, status, sale_price, trade_accepts,
       starting_price, allow_cents, start_time, end_time, created_at, updated_at`

func (r *MySQLListingRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	query := `
        INSERT INTO trade_listings (` + listingColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		listing.ID, listing.OwnerID, listing.ItemID,
		string(listing.Kind), string(listing.Status),
		listing.SalePrice, nullString(listing.TradeAccepts),
		listing.StartingPrice, listing.AllowCents,
		nullTime(listing.StartTime), nullTime(listing.EndTime),
		listing.CreatedAt, listing.UpdatedAt)
	return err
}

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM trade_listings WHERE id = ?`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, listingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

func (r *MySQLListingRepository) GetOpenListingForItem(ctx context.Context, ownerID, itemID string) (*domain.Listing, error) {
	query := `
        SELECT ` + listingColumns + `
        FROM trade_listings
        WHERE owner_id = ? AND item_id = ? AND status = 'open'
    `

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, ownerID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

func (r *MySQLListingRepository) UpdateListing(ctx context.Context, listing *domain.Listing) error {
	query := `
        UPDATE trade_listings
        SET kind = ?, sale_price = ?, trade_accepts = ?, starting_price = ?,
            allow_cents = ?, start_time = ?, end_time = ?, updated_at = ?
        WHERE id = ? AND status = 'open'
    `
	res, err := r.db.ExecContext(ctx, query,
		string(listing.Kind), listing.SalePrice, nullString(listing.TradeAccepts),
		listing.StartingPrice, listing.AllowCents,
		nullTime(listing.StartTime), nullTime(listing.EndTime),
		listing.UpdatedAt, listing.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrListingNotOpen
	}
	return nil
}

func (r *MySQLListingRepository) ListOpenListings(ctx context.Context, kind domain.ListingKind, limit, offset int) ([]*domain.Listing, error) {
	base := `SELECT ` + listingColumns + ` FROM trade_listings WHERE status = 'open'`

	var (
		rows *sql.Rows
		err  error
	)
	if kind != "" {
		rows, err = r.db.QueryContext(ctx,
			base+` AND kind = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			string(kind), limit, offset)
	} else {
		rows, err = r.db.QueryContext(ctx,
			base+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectListings(rows)
}

func (r *MySQLListingRepository) GetDueAuctions(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	query := `
        SELECT ` + listingColumns + `
        FROM trade_listings
        WHERE kind = 'auction' AND status = 'open'
          AND end_time IS NOT NULL AND end_time <= ?
        ORDER BY end_time ASC
    `

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectListings(rows)
}

// CloseListing is the idempotence guard: the WHERE status = 'open' clause
// makes the transition a single check-and-set, so a second finalizer run
// affects zero rows and reports false.
func (r *MySQLListingRepository) CloseListing(ctx context.Context, listingID string, to domain.ListingStatus) (bool, error) {
	query := `UPDATE trade_listings SET status = ?, updated_at = ? WHERE id = ? AND status = 'open'`
	res, err := r.db.ExecContext(ctx, query, string(to), time.Now(), listingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		listing      domain.Listing
		kind, status string
		salePrice    sql.NullFloat64
		tradeAccepts sql.NullString
		startTime    sql.NullTime
		endTime      sql.NullTime
	)

	err := row.Scan(&listing.ID, &listing.OwnerID, &listing.ItemID,
		&kind, &status, &salePrice, &tradeAccepts,
		&listing.StartingPrice, &listing.AllowCents,
		&startTime, &endTime, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return nil, err
	}

	listing.Kind = domain.ListingKind(kind)
	listing.Status = domain.ListingStatus(status)
	if salePrice.Valid {
		v := salePrice.Float64
		listing.SalePrice = &v
	}
	if tradeAccepts.Valid {
		listing.TradeAccepts = tradeAccepts.String
	}
	if startTime.Valid {
		t := startTime.Time
		listing.StartTime = &t
	}
	if endTime.Valid {
		t := endTime.Time
		listing.EndTime = &t
	}
	return &listing, nil
}

func collectListings(rows *sql.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
