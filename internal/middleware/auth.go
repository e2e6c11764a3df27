package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zynqcloud/securevault/internal/authtoken"
	"github.com/zynqcloud/securevault/internal/httpx"
	"github.com/zynqcloud/securevault/internal/metadatastore"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
)

type contextKey int

const userContextKey contextKey = iota

// Auth returns middleware that validates the bearer JWT on every request,
// loads the owning user, and rejects a token issued before the user's most
// recent password change (spec §6). It generalizes the teacher's
// ServiceToken shared-secret check (constant-time compare, early pass on
// empty config) from a static token to a per-request signed JWT. The
// validated *model.User is attached to the request context for handlers to
// read via UserFromContext.
func Auth(issuer *authtoken.Issuer, users *metadatastore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "missing bearer token"))
				return
			}

			claims, err := issuer.Verify(tokenString)
			if err != nil {
				httpx.Error(w, err)
				return
			}
			id, err := claims.UserObjectID()
			if err != nil {
				httpx.Error(w, err)
				return
			}
			u, err := users.GetUserByID(r.Context(), id)
			if err != nil {
				httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "user not found"))
				return
			}
			if !u.Active {
				httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "account is deactivated"))
				return
			}
			if err := authtoken.CheckFreshness(claims, u); err != nil {
				httpx.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user attached by Auth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userContextKey).(*model.User)
	return u, ok
}

// RequireAdmin returns middleware rejecting any caller whose role is not
// admin. It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok || u.Role != model.RoleAdmin {
			httpx.Error(w, vaulterr.New(vaulterr.Forbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
