// ABOUTME: Alert payload and sink interface for session health notifications.
// ABOUTME: Sinks are fire-and-forget; delivery failures are logged, not raised.

package alert

import (
	"context"
	"fmt"
	"time"
)

// Alert is a session health notification. Field names follow the webhook
// consumers' existing contract.
type Alert struct {
	Type                string    `json:"type"`
	Severity            string    `json:"severity"`
	TenantID            string    `json:"tenantId"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastCheck           time.Time `json:"lastCheck"`
	Message             string    `json:"message"`
	At                  time.Time `json:"at"`
	Env                 string    `json:"env"`
}

// NewSessionAlert builds the standard session-down alert for a tenant.
func NewSessionAlert(tenantID string, failures int, lastCheck time.Time, env string) Alert {
	return Alert{
		Type:                "session_alert",
		Severity:            "high",
		TenantID:            tenantID,
		ConsecutiveFailures: failures,
		LastCheck:           lastCheck,
		Message: fmt.Sprintf("session for tenant %s has failed %d consecutive health checks",
			tenantID, failures),
		At:  time.Now().UTC(),
		Env: env,
	}
}

// Sink delivers alerts somewhere. Send never returns an error: alerting is
// best-effort and must not feed back into the health loop that raised it.
type Sink interface {
	Send(ctx context.Context, a Alert)
}

// NopSink drops every alert.
type NopSink struct{}

func (NopSink) Send(context.Context, Alert) {}

// MultiSink fans an alert out to every configured sink.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, a Alert) {
	for _, s := range m {
		s.Send(ctx, a)
	}
}
