// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides tenant/token persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			provider        TEXT NOT NULL DEFAULT '',
			phone_number_id TEXT NOT NULL DEFAULT '',
			api_token       TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tenants_provider ON tenants(provider);

		CREATE TABLE IF NOT EXISTS api_tokens (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetTenant retrieves a tenant by ID. Returns ErrNotFound if no row exists.
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, phone_number_id, api_token, created_at, updated_at
		FROM tenants WHERE id = ?`, id)

	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns all tenants ordered by creation time.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return s.queryTenants(ctx, `
		SELECT id, name, provider, phone_number_id, api_token, created_at, updated_at
		FROM tenants ORDER BY created_at`)
}

// ListMessagingTenants returns tenants with a non-trivial messaging configuration.
func (s *SQLiteStore) ListMessagingTenants(ctx context.Context) ([]*Tenant, error) {
	return s.queryTenants(ctx, `
		SELECT id, name, provider, phone_number_id, api_token, created_at, updated_at
		FROM tenants WHERE provider != '' AND provider != 'none' ORDER BY created_at`)
}

func (s *SQLiteStore) queryTenants(ctx context.Context, query string) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// UpsertTenant inserts or updates a tenant record.
func (s *SQLiteStore) UpsertTenant(ctx context.Context, tenant *Tenant) error {
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, provider, phone_number_id, api_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			phone_number_id = excluded.phone_number_id,
			api_token = excluded.api_token,
			updated_at = excluded.updated_at`,
		tenant.ID, tenant.Name, tenant.Provider, tenant.PhoneNumberID, tenant.APIToken,
		tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting tenant: %w", err)
	}
	return nil
}

// DeleteTenant removes a tenant record. Returns ErrNotFound if no row existed.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAPIToken stores a new hashed API token.
func (s *SQLiteStore) CreateAPIToken(ctx context.Context, token *APIToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, name, token_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		token.ID, token.Name, token.TokenHash, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating api token: %w", err)
	}
	return nil
}

// GetAPIToken retrieves an API token by ID. Returns ErrNotFound if no row exists.
func (s *SQLiteStore) GetAPIToken(ctx context.Context, id string) (*APIToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, token_hash, created_at FROM api_tokens WHERE id = ?`, id)

	var t APIToken
	err := row.Scan(&t.ID, &t.Name, &t.TokenHash, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying api token: %w", err)
	}
	return &t, nil
}

// ListAPITokens returns all API tokens ordered by creation time.
func (s *SQLiteStore) ListAPITokens(ctx context.Context) ([]*APIToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, token_hash, created_at FROM api_tokens ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.Name, &t.TokenHash, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning api token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// DeleteAPIToken removes an API token. Returns ErrNotFound if no row existed.
func (s *SQLiteStore) DeleteAPIToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting api token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanTenant.
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Provider, &t.PhoneNumberID, &t.APIToken,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
