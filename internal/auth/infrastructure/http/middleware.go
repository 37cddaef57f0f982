package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/nvalerio/storefront-api/internal/auth/domain"
	"github.com/nvalerio/storefront-api/internal/web"
)

type ctxKey int

const userKey ctxKey = iota

// UserFromContext returns the authenticated user placed by Authenticate.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey).(domain.User)
	return u, ok
}

// ContextWithUser is exported for handler tests.
func ContextWithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Authenticate resolves the bearer token and stores the user in the request
// context. Requests without a valid token get 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		u, err := h.service.Authenticate(r.Context(), token)
		if err != nil {
			web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

// RequireAdmin gates a route group to admin users. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok || !u.IsAdmin {
			web.Message(w, http.StatusForbidden, "Unauthorized. Admin access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
