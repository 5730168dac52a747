// ABOUTME: HTTP middleware authenticating ops API requests via JWT or
// ABOUTME: static API token, attaching the caller identity to the context.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/relaywell/session-gateway/internal/store"
)

// TokenStore is the slice of the store the middleware needs.
type TokenStore interface {
	GetAPIToken(ctx context.Context, id string) (*store.APIToken, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware authenticates requests with either a JWT or an API token.
// JWTs are tried first; anything that fails JWT parsing is treated as a
// presented API token and checked against the store.
func Middleware(verifier TokenVerifier, tokens TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			if subject, err := verifier.Verify(token); err == nil {
				id := &Identity{Subject: subject, Method: "jwt"}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			tokenID, secret, ok := SplitToken(token)
			if !ok {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			record, err := tokens.GetAPIToken(r.Context(), tokenID)
			if err != nil || !CheckSecret(record.TokenHash, secret) {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			id := &Identity{Subject: record.ID, Method: "api_token"}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
