package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/jcondina/sum-reservations/auth"
	"github.com/jcondina/sum-reservations/models"
	"github.com/jcondina/sum-reservations/webutil"
)

// TokenVerifier turns a bearer token into an identity.
// Implemented by auth.TokenIssuer.
type TokenVerifier interface {
	Verify(token string) (*models.Identity, error)
}

// RoleChecker answers whether an email belongs to an admin.
// Implemented by datastore.UserRepository.
type RoleChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// RequireSession rejects requests without a valid bearer token and
// attaches the verified identity to the request context.
func RequireSession(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				webutil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				webutil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin gates admin-only routes. It must run after
// RequireSession. The admin flag is read from the store on every
// request rather than trusted from token claims.
func RequireAdmin(roles RoleChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				webutil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			isAdmin, err := roles.IsAdmin(r.Context(), identity.Email)
			if err != nil {
				webutil.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if !isAdmin {
				webutil.RespondWithError(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(webutil.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
