// ABOUTME: Identity propagation through request contexts.

package auth

import "context"

// Identity is the authenticated caller of an ops API request.
type Identity struct {
	Subject string // operator name (JWT) or token id (API token)
	Method  string // "jwt" | "api_token"
}

type identityKey struct{}

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the identity, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
