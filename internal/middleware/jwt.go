package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"go-relay/internal/identity"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenValidator decouples this package from the user service.
type TokenValidator interface {
	ValidateToken(tokenString string) (identity.Identity, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle rejects requests without a valid token and injects the
// resolved identity into the request context.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// Fallback: query param, for websocket handshakes.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		ident, err := am.validator.ValidateToken(tokenString)
		if err != nil || !ident.Bound() {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the identity the middleware attached, if any.
func FromContext(ctx context.Context) (identity.Identity, bool) {
	ident, ok := ctx.Value(IdentityKey).(identity.Identity)
	return ident, ok
}
