// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	tokens  map[string]*APIToken
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tenants: make(map[string]*Tenant),
		tokens:  make(map[string]*APIToken),
	}
}

// GetTenant retrieves a tenant by ID.
func (m *MockStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to avoid external modification
	result := *t
	return &result, nil
}

// ListTenants returns all tenants sorted by ID.
func (m *MockStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		result := *t
		tenants = append(tenants, &result)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

// ListMessagingTenants returns tenants with a non-trivial messaging configuration.
func (m *MockStore) ListMessagingTenants(ctx context.Context) ([]*Tenant, error) {
	all, _ := m.ListTenants(ctx)
	tenants := make([]*Tenant, 0, len(all))
	for _, t := range all {
		if t.HasMessaging() {
			tenants = append(tenants, t)
		}
	}
	return tenants, nil
}

// UpsertTenant inserts or updates a tenant record.
func (m *MockStore) UpsertTenant(ctx context.Context, tenant *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	t := *tenant
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m.tenants[t.ID] = &t
	return nil
}

// DeleteTenant removes a tenant record.
func (m *MockStore) DeleteTenant(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[id]; !ok {
		return ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

// CreateAPIToken stores a new API token.
func (m *MockStore) CreateAPIToken(ctx context.Context, token *APIToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := *token
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.tokens[t.ID] = &t
	return nil
}

// GetAPIToken retrieves an API token by ID.
func (m *MockStore) GetAPIToken(ctx context.Context, id string) (*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *t
	return &result, nil
}

// ListAPITokens returns all API tokens sorted by ID.
func (m *MockStore) ListAPITokens(ctx context.Context) ([]*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]*APIToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		result := *t
		tokens = append(tokens, &result)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens, nil
}

// DeleteAPIToken removes an API token.
func (m *MockStore) DeleteAPIToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
