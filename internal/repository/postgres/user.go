package postgres

import (
	"context"
	"database/sql"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type userDirectory struct {
	db *sql.DB
}

// NewUserDirectory reads notification contacts from the users table managed
// by the authentication service.
func NewUserDirectory(db *sql.DB) repository.UserDirectory {
	return &userDirectory{db: db}
}

func (r *userDirectory) GetContact(ctx context.Context, userID string) (*domain.UserContact, error) {
	u := &domain.UserContact{}
	query := `SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, '') FROM users WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}
