package auth

import (
	"net/http"
	"strings"

	"github.com/plabarre/agenda/internal/store"
)

// Middleware attaches the authenticated user and any share-link token to the
// request context.
type Middleware struct {
	issuer     *TokenIssuer
	users      store.UserRepository
	superEmail string
}

func NewMiddleware(issuer *TokenIssuer, users store.UserRepository, superEmail string) *Middleware {
	return &Middleware{issuer: issuer, users: users, superEmail: superEmail}
}

// Authenticate is optional authentication: a valid bearer header or access
// cookie attaches the user, anything else leaves the request anonymous. The
// ?token= query parameter, when present, is retained as a share-link token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token := r.URL.Query().Get("token"); token != "" {
			ctx = WithLinkToken(ctx, token)
		}

		raw := bearerToken(r)
		if raw == "" {
			if c, err := r.Cookie(AccessCookie); err == nil {
				raw = c.Value
			}
		}
		if raw != "" {
			if userID, err := m.issuer.Verify(raw, TokenAccess); err == nil {
				if user, err := m.users.GetByID(ctx, userID); err == nil && !user.IsBanned {
					ctx = WithUser(ctx, user)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests with 401.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only application admins and the configured superadmin.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if !m.IsSuper(user) && !user.IsAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsSuper reports whether the user is the configured superadmin.
func (m *Middleware) IsSuper(user *store.User) bool {
	return m.superEmail != "" && user.Email == m.superEmail
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}
