package auth

import (
	"context"
	"fmt"
	"net/http"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type (instead of a plain string) means no other
// package can read or shadow the userID value we store on the request context.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the "token" HttpOnly cookie, verifies it, and stores
// the user ID in the request context. A missing, expired, or malformed token
// ends the request with 401 — the client must re-authenticate; there is
// nothing to retry.
//
// MIDDLEWARE PATTERN:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them in a chain: req → RequireAuth → handler → resp.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessCookieName)
			if err != nil {
				// http.ErrNoCookie — the browser sent no access token.
				deny(w, "No token provided")
				return
			}

			userID, err := tokens.Verify(cookie.Value)
			if err != nil {
				deny(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// deny ends the request with a 401 and the JSON error body the SPA expects.
func deny(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"message":%q}`, message)
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns (0, false) if the request did not pass RequireAuth.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}
