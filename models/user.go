package models

import "time"

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password"` // NULL for users without local credentials
	Name         *string   `json:"name" db:"name"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Identity is the authenticated view of a user attached to a request.
// IsAdmin here reflects the flag at token-issue time; authorization
// checks re-read it from the store.
type Identity struct {
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}
