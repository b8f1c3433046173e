package auth

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware rejects requests without a valid bearer token and stores the
// authenticated user ID in the request context.
func Middleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}

			userID, err := tm.Verify(rawToken)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserVerifier reports whether a user ID still refers to an existing
// account.
type UserVerifier interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// OptionalMiddleware stores the user ID when a valid bearer token is present
// and otherwise lets the request through as anonymous. A token that fails to
// verify, or whose subject no longer exists, is treated the same as no
// token; endpoints behind this middleware fall back to their own credential
// checks (scanner key). A nil verifier skips the existence check.
func OptionalMiddleware(tm *TokenManager, users UserVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err == nil {
				if userID, err := tm.Verify(rawToken); err == nil && knownUser(r.Context(), users, userID) {
					ctx := context.WithValue(r.Context(), userIDKey, userID)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func knownUser(ctx context.Context, users UserVerifier, userID string) bool {
	if users == nil {
		return true
	}
	exists, err := users.UserExists(ctx, userID)
	return err == nil && exists
}

// UserID returns the authenticated user ID from the context, or "" for
// anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
