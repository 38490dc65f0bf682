package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jcondina/sum-reservations/models"
)

const DefaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload for an authenticated session. The admin
// flag is informational; authorization gates re-read it from the
// store.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a single HMAC
// secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (ti *TokenIssuer) Issue(user *models.User) (string, error) {
	now := ti.now()
	claims := Claims{
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	if user.Name != nil {
		claims.Name = *user.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token and returns the identity
// it carries. Any parse, signature or expiry failure collapses into
// ErrInvalidToken; callers have no reason to distinguish them.
func (ti *TokenIssuer) Verify(tokenString string) (*models.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &models.Identity{
		UserID:  userID,
		Email:   claims.Email,
		Name:    claims.Name,
		IsAdmin: claims.IsAdmin,
	}, nil
}
