package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keynest/gateway/pkg/claims"
)

// RoleAdmin gates the user-management routes.
const RoleAdmin = "ROLE_ADMIN"

// ClaimsKey is the context key under which the guard stores decoded claims.
const ClaimsKey = contextKey("claims")

// ClaimsFromContext retrieves the decoded claim set placed by the guard.
// Returns nil on unguarded routes.
func ClaimsFromContext(ctx context.Context) *claims.AccessClaims {
	c, ok := ctx.Value(ClaimsKey).(*claims.AccessClaims)
	if !ok {
		return nil
	}
	return c
}

// Guard enforces per-route role requirements. Routes are declared in the
// router: public routes are registered without the guard, and an empty
// requirement means no restriction.
type Guard struct {
	logger *slog.Logger
}

func NewGuard(logger *slog.Logger) *Guard {
	return &Guard{logger: logger}
}

// Require wraps a handler with a role check. A request passes when its
// aggregated role set shares at least one role with the requirement; it
// never needs all of them. With no required roles the wrapped handler is
// called as-is. Decode failures deny the request, they are never
// propagated as faults.
func (g *Guard) Require(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				g.logger.Error("token not found or invalid format", slog.String("path", r.URL.Path))
				writeDenied(w, "Token not found or invalid format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			decoded, err := claims.Decode(token)
			if err != nil {
				g.logger.Error("error verifying token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeDenied(w, "Invalid token")
				return
			}

			if !decoded.HasAny(roles) {
				g.logger.Error("access denied",
					slog.String("path", r.URL.Path),
					slog.Any("required_roles", roles),
					slog.Any("user_roles", decoded.Roles()),
				)
				writeDenied(w, "Access denied")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, decoded)
			next(w, r.WithContext(ctx))
		}
	}
}

func writeDenied(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"statusCode": http.StatusForbidden,
		"message":    message,
	})
}
