// Package store provides persistence for session-gateway.
//
// # Overview
//
// The store is the tenant config port of the routing core: it records which
// messaging provider each tenant (workspace) is configured with, plus any
// provider-specific settings. The provider registry and the watchdog read
// tenant rows on every operation and never cache them, so a provider change
// takes effect on the next call.
//
// It also holds hashed bearer tokens for the ops API.
//
// # Implementations
//
//   - SQLiteStore: production implementation using modernc.org/sqlite with
//     WAL mode and automatic schema creation.
//   - MockStore: in-memory implementation for tests.
//
// # Semantics
//
// GetTenant returns ErrNotFound for a missing row — callers treat that as a
// hard configuration error (tenant_not_found), distinct from a tenant whose
// provider is empty or "none", which simply means messaging is not enabled.
package store
