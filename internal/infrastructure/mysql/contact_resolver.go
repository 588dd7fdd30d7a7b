package mysql

import (
	"context"
	"database/sql"
	"errors"

	"diecast-trading/internal/domain"
)

// MySQLContactResolver reads notification addresses from the profiles table.
// A missing profile or a profile without an email is not an error.
type MySQLContactResolver struct {
	db *sql.DB
}

func NewMySQLContactResolver(db *sql.DB) *MySQLContactResolver {
	return &MySQLContactResolver{db: db}
}

func (r *MySQLContactResolver) ResolveContact(ctx context.Context, accountID string) (*domain.Contact, error) {
	query := `SELECT user_id, display_name, email FROM profiles WHERE user_id = ?`

	var (
		contact     domain.Contact
		displayName sql.NullString
		email       sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&contact.AccountID, &displayName, &email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	contact.DisplayName = displayName.String
	contact.Email = email.String
	return &contact, nil
}
