// ABOUTME: Tests for JWT verification, API token hashing, and the HTTP
// ABOUTME: middleware's two-path credential check.

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywell/session-gateway/internal/store"
)

func TestJWTRoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("ops@relaywell", time.Hour)
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@relaywell", subject)
}

func TestJWTExpired(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("ops@relaywell", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := NewJWTVerifier([]byte("secret-a")).Generate("ops", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("secret-b")).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAPITokenMintAndCheck(t *testing.T) {
	record, presented, err := NewAPIToken("tok-1", "ci")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", record.ID)
	assert.NotContains(t, record.TokenHash, presented, "plaintext never stored")

	id, secret, ok := SplitToken(presented)
	require.True(t, ok)
	assert.Equal(t, "tok-1", id)
	assert.True(t, CheckSecret(record.TokenHash, secret))
	assert.False(t, CheckSecret(record.TokenHash, "wrong"))
}

func TestSplitToken(t *testing.T) {
	_, _, ok := SplitToken("no-separator")
	assert.False(t, ok)

	_, _, ok = SplitToken(".secret-only")
	assert.False(t, ok)

	id, secret, ok := SplitToken("tok-1.abc")
	require.True(t, ok)
	assert.Equal(t, "tok-1", id)
	assert.Equal(t, "abc", secret)
}

func testMiddleware(t *testing.T) (http.Handler, *JWTVerifier, *store.MockStore, *Identity) {
	t.Helper()
	verifier := NewJWTVerifier([]byte("secret"))
	mock := store.NewMockStore()

	var seen Identity
	handler := Middleware(verifier, mock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := FromContext(r.Context()); id != nil {
			seen = *id
		}
		w.WriteHeader(http.StatusOK)
	}))
	return handler, verifier, mock, &seen
}

func TestMiddlewareJWT(t *testing.T) {
	handler, verifier, _, seen := testMiddleware(t)

	token, err := verifier.Generate("ops@relaywell", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@relaywell", seen.Subject)
	assert.Equal(t, "jwt", seen.Method)
}

func TestMiddlewareAPIToken(t *testing.T) {
	handler, _, mock, seen := testMiddleware(t)

	record, presented, err := NewAPIToken("tok-1", "ci")
	require.NoError(t, err)
	require.NoError(t, mock.CreateAPIToken(context.Background(), record))

	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("Authorization", "Bearer "+presented)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", seen.Subject)
	assert.Equal(t, "api_token", seen.Method)
}

func TestMiddlewareRejections(t *testing.T) {
	handler, _, _, _ := testMiddleware(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer nonsense"},
		{"unknown api token", "Bearer ghost.secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
