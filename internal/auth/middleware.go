package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/platform/httpx"
)

// Middleware resolves bearer tokens to accounts for protected routes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without a valid bearer token and stores the
// resolved account in the request context.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		account, err := m.Service.AccountForToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		ctx := identity.ContextWithAccount(r.Context(), account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser additionally rejects non-superuser accounts. It must be
// mounted after Require.
func (m Middleware) RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := identity.AccountFromContext(r.Context())
		if !ok || !account.SuperUser {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "superuser required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
