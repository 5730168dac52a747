// ABOUTME: Store interface and data types for session-gateway persistence
// ABOUTME: Defines Tenant, APIToken structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ProviderNone marks a tenant that has messaging explicitly disabled.
// Tenants with this provider (or none at all) are skipped by the watchdog.
const ProviderNone = "none"

// Tenant represents a workspace and its messaging provider configuration.
// This is the tenant config port of the routing core: the provider registry
// and the watchdog read tenants from here on every operation, never caching.
type Tenant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"` // provider identifier, e.g. "gateway", "auto", "twilio"
	PhoneNumberID string    `json:"phone_number_id,omitempty"` // provider-specific setting, may be empty
	APIToken      string    `json:"-"`                         // provider-specific credential, never serialized
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasMessaging reports whether the tenant has a non-trivial messaging
// configuration and should be health-checked.
func (t *Tenant) HasMessaging() bool {
	return t.Provider != "" && t.Provider != ProviderNone
}

// APIToken represents a hashed bearer credential for the ops API.
type APIToken struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for session-gateway.
type Store interface {
	// Tenant config port
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	// ListMessagingTenants returns only tenants with a non-trivial messaging
	// configuration (provider set and not "none").
	ListMessagingTenants(ctx context.Context) ([]*Tenant, error)
	UpsertTenant(ctx context.Context, tenant *Tenant) error
	DeleteTenant(ctx context.Context, id string) error

	// Ops API tokens
	CreateAPIToken(ctx context.Context, token *APIToken) error
	GetAPIToken(ctx context.Context, id string) (*APIToken, error)
	ListAPITokens(ctx context.Context) ([]*APIToken, error)
	DeleteAPIToken(ctx context.Context, id string) error

	Close() error
}
