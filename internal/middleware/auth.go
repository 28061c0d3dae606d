package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/easyorder/api/internal/auth"
	"github.com/easyorder/api/internal/logger"
	"go.uber.org/zap"
)

type claimsKey struct{}

var (
	errNoHeader  = errors.New("missing authorization header")
	errBadScheme = errors.New("invalid authorization format")
)

// Authenticate requires a valid bearer access token. The claims go into the
// request context and the request logger is tagged with the staff member.
// Refresh tokens carry no user claim and are rejected here.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFromRequest(jwtSecret, r)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, errNoHeader) || errors.Is(err, errBadScheme) {
					msg = err.Error()
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(
				zap.Stringer("user_id", claims.UserID),
				zap.String("role", claims.Role),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromRequest(secret string, r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errNoHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, errBadScheme
	}
	return auth.ValidateAccessToken(secret, token)
}

// RequireRole admits only the listed staff roles. It must run after
// Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns nil outside an authenticated route.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
