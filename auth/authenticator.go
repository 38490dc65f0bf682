package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jcondina/sum-reservations/models"
)

// CredentialStore looks up stored credential material by email.
// Implemented by datastore.UserRepository.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type Authenticator struct {
	users CredentialStore
}

func NewAuthenticator(users CredentialStore) *Authenticator {
	return &Authenticator{users: users}
}

// Validate checks the submitted password against the stored bcrypt
// hash. It returns (nil, nil) when the email is unknown, the user has
// no stored credential, or the password does not match; only store
// failures are errors.
func (a *Authenticator) Validate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}

	if user.PasswordHash == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil
		}
		return nil, fmt.Errorf("password comparison failed: %w", err)
	}

	return user, nil
}

// HashPassword produces a bcrypt hash suitable for the users table.
// Registration itself lives outside this service; this is here for
// seeding and tests.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
