package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"crmauth/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// RequireAuth verifies the bearer access token and injects its claims into
// the request context. Any verification failure is a uniform 401.
func RequireAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, errors.New("unauthenticated"))
				return
			}

			claims, err := svc.VerifyAccess(r.Context(), token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, errors.New("unauthenticated"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified access-token claims placed by
// RequireAuth, or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}
