// ABOUTME: Session-gateway adapter: the auto/hybrid/gateway backend that
// ABOUTME: drives sessions through the browser-automation gateway.

package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

// sessionAdapter routes everything through the session gateway client. The
// tenant's ID doubles as the gateway session name.
type sessionAdapter struct {
	client  *sessiongw.Client
	qrDelay time.Duration
	logger  *slog.Logger
}

func newSessionAdapter(client *sessiongw.Client, qrDelay time.Duration, logger *slog.Logger) *sessionAdapter {
	return &sessionAdapter{
		client:  client,
		qrDelay: qrDelay,
		logger:  logger.With("adapter", "session"),
	}
}

// Start kicks off the session, then waits briefly before fetching the pairing
// QR: the gateway needs a moment after start before a QR exists, and probing
// immediately would always miss it.
func (a *sessionAdapter) Start(ctx context.Context, tenant *store.Tenant) (StartOutcome, error) {
	res, err := a.client.StartSession(ctx, tenant.ID)
	if err != nil {
		return StartOutcome{}, err
	}

	// Only a start the gateway actually performed yields a QR. A refused
	// start, a collapsed duplicate, and an already-live session all skip the
	// delay and the fetch.
	out := StartOutcome{Success: res.Success, Message: res.Message}
	if !res.Success ||
		res.Message == sessiongw.MessageAlreadyConnected ||
		res.Message == sessiongw.MessageSessionStarting {
		return out, nil
	}

	select {
	case <-time.After(a.qrDelay):
	case <-ctx.Done():
		return out, nil
	}

	qr := a.client.QRCodeImage(ctx, tenant.ID)
	out.QR = &qr
	return out, nil
}

// Status probes the session state and, for sessions that are not connected,
// attaches the current QR so a disconnected tenant can be re-paired from a
// single status call.
func (a *sessionAdapter) Status(ctx context.Context, tenant *store.Tenant) (StatusOutcome, error) {
	state, err := a.client.SessionStatus(ctx, tenant.ID)
	if err != nil {
		return StatusOutcome{}, err
	}

	out := StatusOutcome{Connected: state.Connected(), State: state}
	if !out.Connected {
		qr := a.client.QRCodeImage(ctx, tenant.ID)
		out.QR = &qr
	}
	return out, nil
}

func (a *sessionAdapter) SendText(ctx context.Context, tenant *store.Tenant, recipient, text string) (SendOutcome, error) {
	res, err := a.client.SendMessage(ctx, tenant.ID, recipient, text)
	if err != nil {
		return SendOutcome{}, err
	}
	return SendOutcome{Success: res.Success, MessageID: res.MessageID}, nil
}

func (a *sessionAdapter) SendMedia(ctx context.Context, tenant *store.Tenant, recipient, url string, opts *sessiongw.SendOptions) (SendOutcome, error) {
	res, err := a.client.SendMediaFromURL(ctx, tenant.ID, recipient, url, opts)
	if err != nil {
		return SendOutcome{}, err
	}
	return SendOutcome{Success: res.Success, MessageID: res.MessageID}, nil
}

func (a *sessionAdapter) Disconnect(ctx context.Context, tenant *store.Tenant) error {
	res, err := a.client.TerminateSession(ctx, tenant.ID)
	if err != nil {
		return err
	}
	if !res.Success {
		a.logger.Warn("terminate refused by gateway", "tenant_id", tenant.ID, "message", res.Message)
	}
	return nil
}

func (a *sessionAdapter) IsRegistered(ctx context.Context, tenant *store.Tenant, recipient string) bool {
	return a.client.IsRegisteredUser(ctx, tenant.ID, recipient)
}
