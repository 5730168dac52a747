// ABOUTME: Per-tenant session health records and their snapshot accessors.

package watchdog

import "time"

// SessionHealth is the watchdog's view of one tenant's session. Records are
// created lazily on first probe and mutated only under the watchdog's lock;
// accessors hand out copies, never live references.
type SessionHealth struct {
	TenantID               string    `json:"tenant_id"`
	Connected              bool      `json:"connected"`
	LastCheckedAt          time.Time `json:"last_checked_at"`
	ConsecutiveFailures    int       `json:"consecutive_failures"`
	LastReconnectAttemptAt time.Time `json:"last_reconnect_attempt_at,omitzero"`
	ConnectedSinceAt       time.Time `json:"connected_since_at,omitzero"`
}

// Stalled reports whether automatic reconnects have been given up for this
// tenant. Probing continues so an externally caused recovery is still seen.
func (h *SessionHealth) Stalled(maxFailures int) bool {
	return h.ConsecutiveFailures > maxFailures
}

// Stats aggregates the health map for the operational API.
type Stats struct {
	Total        int `json:"total"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	WithFailures int `json:"with_failures"`
}

// SessionHealth returns a copy of one tenant's record, or nil if the tenant
// has never been probed.
func (w *Watchdog) SessionHealth(tenantID string) *SessionHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	h, ok := w.health[tenantID]
	if !ok {
		return nil
	}
	copied := *h
	return &copied
}

// AllSessionsHealth returns a snapshot of every record.
func (w *Watchdog) AllSessionsHealth() []SessionHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]SessionHealth, 0, len(w.health))
	for _, h := range w.health {
		out = append(out, *h)
	}
	return out
}

// Stats returns aggregate counts over the health map.
func (w *Watchdog) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Stats{Total: len(w.health)}
	for _, h := range w.health {
		if h.Connected {
			s.Connected++
		} else {
			s.Disconnected++
		}
		if h.ConsecutiveFailures > 0 {
			s.WithFailures++
		}
	}
	return s
}

// recordLocked returns the tenant's record, creating it on first probe.
// Caller must hold w.mu.
func (w *Watchdog) recordLocked(tenantID string) *SessionHealth {
	h, ok := w.health[tenantID]
	if !ok {
		h = &SessionHealth{TenantID: tenantID}
		w.health[tenantID] = h
	}
	return h
}
