package auth

import (
	"context"

	"github.com/jcondina/sum-reservations/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity attaches a verified identity to the request context.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the authenticated identity, or nil on
// unauthenticated routes.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityContextKey).(*models.Identity)
	return identity
}
