// ABOUTME: Provider kinds, adapter interface, and the outcome types shared by
// ABOUTME: every messaging backend.

package provider

import (
	"context"
	"errors"

	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

// ErrTenantNotFound is returned when an operation names a tenant the store
// does not know.
var ErrTenantNotFound = errors.New("tenant not found")

// Kind identifies a messaging backend.
type Kind string

const (
	// KindAuto picks the session gateway. It is also the fallback for any
	// provider string the registry does not recognize.
	KindAuto    Kind = "auto"
	KindHybrid  Kind = "hybrid"
	KindGateway Kind = "gateway"

	// Legacy API-based providers. Recognized so stored tenants keep a stable
	// identity, but not implemented: their operations return structured
	// provider_not_implemented outcomes rather than errors.
	KindTwilio    Kind = "twilio"
	KindVonage    Kind = "vonage"
	KindDialog360 Kind = "dialog360"
	KindCloudAPI  Kind = "cloudapi"

	// KindNone marks a tenant with messaging disabled.
	KindNone Kind = "none"
)

// ParseKind maps a tenant's stored provider string to a Kind. Unknown or
// missing values fall back to auto, so a tenant without an explicit provider
// gets the default backend and a typo degrades to it instead of breaking the
// tenant. Only an explicit "none" disables messaging.
func ParseKind(s string) Kind {
	kind, _ := parseKind(s)
	return kind
}

// parseKind additionally reports whether the value was recognized, so the
// registry can log typos before falling back.
func parseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindAuto, KindHybrid, KindGateway, KindTwilio, KindVonage,
		KindDialog360, KindCloudAPI, KindNone:
		return Kind(s), true
	case "":
		return KindAuto, true
	default:
		return KindAuto, false
	}
}

// Reason strings attached to structured failure outcomes.
const (
	ReasonNotImplemented = "provider_not_implemented"
	ReasonNotConfigured  = "provider_not_configured"
)

// StartOutcome is the result of starting a tenant session. When the backend
// hands out a pairing QR it rides along so callers get it in one round trip.
type StartOutcome struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	QR      *sessiongw.QRResult `json:"qr,omitempty"`
}

// StatusOutcome is the result of a session status probe.
type StatusOutcome struct {
	Connected bool                `json:"connected"`
	State     sessiongw.State     `json:"state"`
	QR        *sessiongw.QRResult `json:"qr,omitempty"`
}

// SendOutcome is the result of a message send.
type SendOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Adapter is a messaging backend bound to a tenant at call time. Adapters do
// not hold per-tenant state; the tenant record carries everything they need.
type Adapter interface {
	// Start initiates the tenant's session. Transport failures surface as
	// errors; backend refusals surface as unsuccessful outcomes.
	Start(ctx context.Context, tenant *store.Tenant) (StartOutcome, error)

	// Status probes the tenant's session state.
	Status(ctx context.Context, tenant *store.Tenant) (StatusOutcome, error)

	// SendText delivers a text message.
	SendText(ctx context.Context, tenant *store.Tenant, recipient, text string) (SendOutcome, error)

	// SendMedia delivers media fetched from a URL.
	SendMedia(ctx context.Context, tenant *store.Tenant, recipient, url string, opts *sessiongw.SendOptions) (SendOutcome, error)

	// Disconnect tears the tenant's session down.
	Disconnect(ctx context.Context, tenant *store.Tenant) error

	// IsRegistered reports whether the recipient exists on the backend's
	// network. Best-effort.
	IsRegistered(ctx context.Context, tenant *store.Tenant, recipient string) bool
}
