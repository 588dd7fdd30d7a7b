package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"diecast-trading/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*MySQLListingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLListingRepository(db), mock
}

func listingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "item_id", "kind", "status", "sale_price", "trade_accepts",
		"starting_price", "allow_cents", "start_time", "end_time", "created_at", "updated_at",
	})
}

func TestGetListing(t *testing.T) {
	repo, mock := newRepoMock(t)
	now := time.Now().UTC()
	end := now.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM trade_listings WHERE id = ?`)).
		WithArgs("lst_1").
		WillReturnRows(listingRows().
			AddRow("lst_1", "seller", "car-1", "auction", "open", nil, nil,
				10.0, false, nil, end, now, now))

	listing, err := repo.GetListing(context.Background(), "lst_1")
	require.NoError(t, err)
	require.Equal(t, "lst_1", listing.ID)
	require.Equal(t, domain.KindAuction, listing.Kind)
	require.Equal(t, domain.StatusOpen, listing.Status)
	require.Nil(t, listing.SalePrice)
	require.Nil(t, listing.StartTime)
	require.NotNil(t, listing.EndTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetListing_NotFound(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM trade_listings WHERE id = ?`)).
		WithArgs("lst_missing").
		WillReturnRows(listingRows())

	_, err := repo.GetListing(context.Background(), "lst_missing")
	require.ErrorIs(t, err, domain.ErrListingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenListingForItem(t *testing.T) {
	repo, mock := newRepoMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE owner_id = ? AND item_id = ? AND status = 'open'`)).
		WithArgs("seller", "car-1").
		WillReturnRows(listingRows().
			AddRow("lst_1", "seller", "car-1", "sell", "open", 45.0, "any Porsche",
				0.0, false, nil, nil, now, now))

	listing, err := repo.GetOpenListingForItem(context.Background(), "seller", "car-1")
	require.NoError(t, err)
	require.NotNil(t, listing.SalePrice)
	require.Equal(t, 45.0, *listing.SalePrice)
	require.Equal(t, "any Porsche", listing.TradeAccepts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateListing_RefusesClosedListing(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE trade_listings`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateListing(context.Background(), &domain.Listing{
		ID: "lst_1", Kind: domain.KindAuction, StartingPrice: 10,
	})
	require.ErrorIs(t, err, domain.ErrListingNotOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDueAuctions(t *testing.T) {
	repo, mock := newRepoMock(t)
	now := time.Now().UTC()
	ended := now.Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE kind = 'auction' AND status = 'open'`)).
		WithArgs(now).
		WillReturnRows(listingRows().
			AddRow("lst_1", "seller", "car-1", "auction", "open", nil, nil,
				10.0, false, nil, ended, now, now).
			AddRow("lst_2", "seller", "car-2", "auction", "open", nil, nil,
				5.0, true, nil, ended, now, now))

	due, err := repo.GetDueAuctions(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "lst_1", due[0].ID)
	require.True(t, due[1].AllowCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseListing(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET status = ?, updated_at = ? WHERE id = ? AND status = 'open'`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	transitioned, err := repo.CloseListing(context.Background(), "lst_1", domain.StatusSold)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseListing_AlreadyClosed(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET status = ?, updated_at = ? WHERE id = ? AND status = 'open'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	transitioned, err := repo.CloseListing(context.Background(), "lst_1", domain.StatusCanceled)
	require.NoError(t, err)
	require.False(t, transitioned)
	require.NoError(t, mock.ExpectationsWereMet())
}
