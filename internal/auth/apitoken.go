// ABOUTME: Static API tokens for machine callers: id.secret pairs whose
// ABOUTME: secrets are stored bcrypt-hashed.

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/relaywell/session-gateway/internal/store"
)

// A presented API token has the form "<id>.<secret>". The id locates the
// stored record; only the bcrypt hash of the secret is persisted.
const tokenSecretBytes = 32

// NewAPIToken mints a token record for storage plus the one-time presentable
// form. The plaintext secret is never recoverable afterwards.
func NewAPIToken(id, name string) (*store.APIToken, string, error) {
	raw := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generating token secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing token secret: %w", err)
	}

	return &store.APIToken{
		ID:        id,
		Name:      name,
		TokenHash: string(hash),
	}, id + "." + secret, nil
}

// SplitToken separates a presented token into id and secret.
func SplitToken(presented string) (id, secret string, ok bool) {
	id, secret, ok = strings.Cut(presented, ".")
	return id, secret, ok && id != "" && secret != ""
}

// CheckSecret compares a presented secret against a stored hash.
func CheckSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
