package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jcondina/sum-reservations/models"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail retrieves the user with the given email. A miss wraps
// sql.ErrNoRows so callers can distinguish it from store failures.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password, name, is_admin, created_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// IsAdmin reports whether the user with the given email carries the
// admin flag. An unknown email is not an error; it is simply not an
// admin.
func (r *UserRepository) IsAdmin(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT is_admin
		FROM users
		WHERE email = $1
	`
	var isAdmin bool
	if err := r.db.GetContext(ctx, &isAdmin, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check admin flag: %w", err)
	}
	return isAdmin, nil
}
