// ABOUTME: Registry routing tenant operations to the adapter chosen by the
// ABOUTME: tenant's stored provider kind.

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

// TenantGetter is the slice of the store the registry needs.
type TenantGetter interface {
	GetTenant(ctx context.Context, id string) (*store.Tenant, error)
}

// Registry resolves a tenant to its messaging adapter and delegates. The
// kind→adapter table is built once at construction; lookups never allocate.
//
// Transport failures on side-effect operations (start, send) come back as
// unsuccessful outcomes rather than errors, so API callers get a uniform
// {success:false, message} shape whether the backend refused or never
// answered. Status probes keep their errors: the watchdog distinguishes "the
// session is down" from "the gateway did not answer".
type Registry struct {
	tenants  TenantGetter
	client   *sessiongw.Client
	adapters map[Kind]Adapter
	logger   *slog.Logger
}

// NewRegistry builds the registry around a session gateway client. qrDelay is
// the pause between starting a session and fetching its pairing QR.
func NewRegistry(tenants TenantGetter, client *sessiongw.Client, qrDelay time.Duration, logger *slog.Logger) *Registry {
	session := newSessionAdapter(client, qrDelay, logger)
	notImplemented := stubAdapter{reason: ReasonNotImplemented}

	return &Registry{
		tenants: tenants,
		client:  client,
		adapters: map[Kind]Adapter{
			KindAuto:      session,
			KindHybrid:    session,
			KindGateway:   session,
			KindTwilio:    notImplemented,
			KindVonage:    notImplemented,
			KindDialog360: notImplemented,
			KindCloudAPI:  notImplemented,
			KindNone:      stubAdapter{reason: ReasonNotConfigured},
		},
		logger: logger.With("component", "provider"),
	}
}

// ResolveProvider returns the kind the tenant's operations will route to.
func (r *Registry) ResolveProvider(ctx context.Context, tenantID string) (Kind, error) {
	tenant, err := r.resolve(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return r.kindFor(tenant), nil
}

// HealthCheck reports whether the underlying session gateway answers at all,
// independent of any tenant session.
func (r *Registry) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx)
}

// StartSession starts the tenant's session through its adapter.
func (r *Registry) StartSession(ctx context.Context, tenantID string) (StartOutcome, error) {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return StartOutcome{}, err
	}

	out, err := adapter.Start(ctx, tenant)
	if err != nil {
		r.logger.Warn("session start failed", "tenant_id", tenantID, "error", err)
		return StartOutcome{Success: false, Message: err.Error()}, nil
	}
	return out, nil
}

// SessionStatus probes the tenant's session state. Transport failures are
// returned as errors.
func (r *Registry) SessionStatus(ctx context.Context, tenantID string) (StatusOutcome, error) {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return StatusOutcome{}, err
	}
	return adapter.Status(ctx, tenant)
}

// SendText delivers a text message through the tenant's adapter.
func (r *Registry) SendText(ctx context.Context, tenantID, recipient, text string) (SendOutcome, error) {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return SendOutcome{}, err
	}

	out, err := adapter.SendText(ctx, tenant, recipient, text)
	if err != nil {
		r.logger.Warn("send failed", "tenant_id", tenantID, "error", err)
		return SendOutcome{Success: false, Message: err.Error()}, nil
	}
	return out, nil
}

// SendMedia delivers a media message through the tenant's adapter.
func (r *Registry) SendMedia(ctx context.Context, tenantID, recipient, url string, opts *sessiongw.SendOptions) (SendOutcome, error) {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return SendOutcome{}, err
	}

	out, err := adapter.SendMedia(ctx, tenant, recipient, url, opts)
	if err != nil {
		r.logger.Warn("media send failed", "tenant_id", tenantID, "error", err)
		return SendOutcome{Success: false, Message: err.Error()}, nil
	}
	return out, nil
}

// Disconnect tears the tenant's session down.
func (r *Registry) Disconnect(ctx context.Context, tenantID string) error {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return err
	}
	return adapter.Disconnect(ctx, tenant)
}

// IsRegistered reports whether the recipient exists on the tenant's network.
func (r *Registry) IsRegistered(ctx context.Context, tenantID, recipient string) (bool, error) {
	tenant, adapter, err := r.route(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return adapter.IsRegistered(ctx, tenant, recipient), nil
}

func (r *Registry) resolve(ctx context.Context, tenantID string) (*store.Tenant, error) {
	tenant, err := r.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}
	return tenant, nil
}

func (r *Registry) route(ctx context.Context, tenantID string) (*store.Tenant, Adapter, error) {
	tenant, err := r.resolve(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return tenant, r.adapters[r.kindFor(tenant)], nil
}

func (r *Registry) kindFor(tenant *store.Tenant) Kind {
	kind, ok := parseKind(tenant.Provider)
	if !ok {
		r.logger.Warn("unrecognized provider, falling back to auto",
			"tenant_id", tenant.ID, "provider", tenant.Provider)
	}
	return kind
}
