// Package auth authenticates ops API callers. Human operators present HS256
// JWTs; machine callers present static API tokens whose secrets are stored
// bcrypt-hashed. Both land in the request context as an Identity.
package auth
