// ABOUTME: Stub adapters for legacy API providers and messaging-disabled
// ABOUTME: tenants. Every operation is a structured refusal, never an error.

package provider

import (
	"context"

	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

// stubAdapter answers every operation with a fixed refusal reason. Callers
// that routed to it made a valid request against a backend that cannot serve
// it, so the refusal is data, not an error.
type stubAdapter struct {
	reason string
}

func (s stubAdapter) Start(_ context.Context, _ *store.Tenant) (StartOutcome, error) {
	return StartOutcome{Success: false, Message: s.reason}, nil
}

func (s stubAdapter) Status(_ context.Context, _ *store.Tenant) (StatusOutcome, error) {
	return StatusOutcome{Connected: false, State: sessiongw.StateUnknown}, nil
}

func (s stubAdapter) SendText(_ context.Context, _ *store.Tenant, _, _ string) (SendOutcome, error) {
	return SendOutcome{Success: false, Message: s.reason}, nil
}

func (s stubAdapter) SendMedia(_ context.Context, _ *store.Tenant, _, _ string, _ *sessiongw.SendOptions) (SendOutcome, error) {
	return SendOutcome{Success: false, Message: s.reason}, nil
}

func (s stubAdapter) Disconnect(_ context.Context, _ *store.Tenant) error {
	return nil
}

func (s stubAdapter) IsRegistered(_ context.Context, _ *store.Tenant, _ string) bool {
	return false
}
