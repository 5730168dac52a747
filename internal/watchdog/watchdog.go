// ABOUTME: Session health watchdog: periodic sequential probe sweep with
// ABOUTME: bounded reconnects, edge-triggered alerting, and stale-record GC.

package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relaywell/session-gateway/internal/alert"
	"github.com/relaywell/session-gateway/internal/metrics"
	"github.com/relaywell/session-gateway/internal/provider"
	"github.com/relaywell/session-gateway/internal/store"
)

// SessionRouter is the slice of the provider registry the watchdog drives.
type SessionRouter interface {
	SessionStatus(ctx context.Context, tenantID string) (provider.StatusOutcome, error)
	StartSession(ctx context.Context, tenantID string) (provider.StartOutcome, error)
}

// TenantLister enumerates the tenants worth probing.
type TenantLister interface {
	ListMessagingTenants(ctx context.Context) ([]*store.Tenant, error)
}

// Options configures a Watchdog.
type Options struct {
	Router         SessionRouter
	Tenants        TenantLister
	Sink           alert.Sink
	Recorder       metrics.Recorder
	Logger         *slog.Logger
	Interval       time.Duration
	Cooldown       time.Duration
	MaxFailures    int
	AlertThreshold int
	GCSchedule     string
	Env            string
}

// Watchdog owns the tenant health map and the recurring probe sweep. Probes
// run sequentially within a tick: the external gateway is a shared,
// rate-sensitive resource, and bounded load matters more than tick latency.
type Watchdog struct {
	router   SessionRouter
	tenants  TenantLister
	sink     alert.Sink
	recorder metrics.Recorder
	logger   *slog.Logger

	interval       time.Duration
	cooldown       time.Duration
	maxFailures    int
	alertThreshold int
	env            string

	mu     sync.RWMutex
	health map[string]*SessionHealth

	ticking atomic.Bool
	gc      *cron.Cron

	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Watchdog {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = alert.NopSink{}
	}

	w := &Watchdog{
		router:         opts.Router,
		tenants:        opts.Tenants,
		sink:           sink,
		recorder:       recorder,
		logger:         logger.With("component", "watchdog"),
		interval:       opts.Interval,
		cooldown:       opts.Cooldown,
		maxFailures:    opts.MaxFailures,
		alertThreshold: opts.AlertThreshold,
		env:            opts.Env,
		health:         make(map[string]*SessionHealth),
	}

	if opts.GCSchedule != "" {
		w.gc = cron.New()
		if _, err := w.gc.AddFunc(opts.GCSchedule, w.gcStaleRecords); err != nil {
			w.logger.Error("invalid gc schedule, gc disabled", "schedule", opts.GCSchedule, "error", err)
			w.gc = nil
		}
	}

	return w
}

// Start launches the tick loop and the GC schedule. The first sweep runs
// immediately rather than waiting a full interval.
func (w *Watchdog) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	if w.gc != nil {
		w.gc.Start()
	}

	go func() {
		defer close(w.done)

		w.RunHealthCheckTick(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunHealthCheckTick(ctx)
			}
		}
	}()

	w.logger.Info("watchdog started", "interval", w.interval,
		"max_failures", w.maxFailures, "alert_threshold", w.alertThreshold)
}

// Stop halts the tick loop and waits for any in-flight sweep to finish.
func (w *Watchdog) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	if w.gc != nil {
		<-w.gc.Stop().Done()
	}
	w.logger.Info("watchdog stopped")
}

// RunHealthCheckTick sweeps every messaging tenant once. A tick that is
// scheduled while the previous one is still in flight is skipped outright:
// ticks never overlap, so the health map has one writer sweep at a time.
func (w *Watchdog) RunHealthCheckTick(ctx context.Context) {
	if !w.ticking.CompareAndSwap(false, true) {
		w.logger.Warn("tick still in flight, skipping")
		return
	}
	defer w.ticking.Store(false)

	started := time.Now()

	tenants, err := w.tenants.ListMessagingTenants(ctx)
	if err != nil {
		w.logger.Error("listing tenants", "error", err)
		return
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		w.CheckTenantSession(ctx, tenant.ID)
	}

	w.recorder.TickDuration(time.Since(started))
	w.logger.Debug("tick complete", "tenants", len(tenants), "elapsed", time.Since(started))
}

// CheckTenantSession probes one tenant, updates its record, and triggers
// alerting and reconnect policy. Everything is caught here so one tenant's
// failure never aborts the sweep for the rest.
func (w *Watchdog) CheckTenantSession(ctx context.Context, tenantID string) SessionHealth {
	out, err := w.router.SessionStatus(ctx, tenantID)
	now := time.Now()

	w.mu.Lock()
	h := w.recordLocked(tenantID)
	h.LastCheckedAt = now

	var outcome string
	switch {
	case err != nil:
		h.Connected = false
		h.ConsecutiveFailures++
		outcome = metrics.OutcomeError
	case out.Connected:
		if !h.Connected {
			h.ConnectedSinceAt = now
		}
		h.Connected = true
		h.ConsecutiveFailures = 0
		outcome = metrics.OutcomeSuccess
	default:
		h.Connected = false
		h.ConsecutiveFailures++
		outcome = metrics.OutcomeDisconnected
	}
	snapshot := *h
	w.mu.Unlock()

	w.recorder.SetSessionConnected(tenantID, snapshot.Connected)
	w.recorder.HealthCheck(outcome)

	if err != nil {
		w.logger.Warn("health probe failed", "tenant_id", tenantID,
			"consecutive_failures", snapshot.ConsecutiveFailures, "error", err)
	}

	if snapshot.Connected {
		return snapshot
	}

	w.alertOnSustainedFailure(ctx, snapshot)

	if w.shouldAttemptReconnect(snapshot) {
		snapshot = w.attemptReconnect(ctx, tenantID)
	}
	return snapshot
}

// shouldAttemptReconnect applies the reconnect policy: past maxFailures the
// tenant is stalled and left to manual intervention; within the budget,
// attempts are spaced by the cooldown.
func (w *Watchdog) shouldAttemptReconnect(h SessionHealth) bool {
	if h.ConsecutiveFailures > w.maxFailures {
		return false
	}
	return h.LastReconnectAttemptAt.IsZero() ||
		time.Since(h.LastReconnectAttemptAt) >= w.cooldown
}

// attemptReconnect stamps the attempt, asks the registry to start the
// session, and on success marks the tenant connected immediately. The next
// tick confirms or corrects the optimism.
func (w *Watchdog) attemptReconnect(ctx context.Context, tenantID string) SessionHealth {
	w.mu.Lock()
	h := w.recordLocked(tenantID)
	h.LastReconnectAttemptAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("attempting reconnect", "tenant_id", tenantID)

	out, err := w.router.StartSession(ctx, tenantID)

	w.mu.Lock()
	h = w.recordLocked(tenantID)
	switch {
	case err != nil:
		w.recorder.ReconnectAttempt(metrics.OutcomeError)
		w.logger.Error("reconnect errored", "tenant_id", tenantID, "error", err)
	case out.Success:
		h.Connected = true
		h.ConsecutiveFailures = 0
		h.ConnectedSinceAt = time.Now()
		w.recorder.ReconnectAttempt(metrics.OutcomeSuccess)
		w.logger.Info("reconnect succeeded", "tenant_id", tenantID)
	default:
		w.recorder.ReconnectAttempt(metrics.OutcomeFailed)
		w.logger.Warn("reconnect refused", "tenant_id", tenantID, "message", out.Message)
	}
	snapshot := *h
	w.mu.Unlock()

	w.recorder.SetSessionConnected(tenantID, snapshot.Connected)
	return snapshot
}

// alertOnSustainedFailure fires exactly once per failure streak, at the tick
// where the counter equals the threshold. Edge-triggered on purpose: a streak
// that keeps growing does not re-alert.
func (w *Watchdog) alertOnSustainedFailure(ctx context.Context, h SessionHealth) {
	if h.ConsecutiveFailures != w.alertThreshold {
		return
	}

	w.logger.Warn("sustained session failure, alerting",
		"tenant_id", h.TenantID, "consecutive_failures", h.ConsecutiveFailures)

	w.sink.Send(ctx, alert.NewSessionAlert(h.TenantID, h.ConsecutiveFailures, h.LastCheckedAt, w.env))
	w.recorder.AlertSent()
}

// ForceCheck runs one probe immediately, bypassing the tick schedule.
func (w *Watchdog) ForceCheck(ctx context.Context, tenantID string) SessionHealth {
	return w.CheckTenantSession(ctx, tenantID)
}

// ForceReconnect clears the cooldown stamp and attempts a reconnect now.
func (w *Watchdog) ForceReconnect(ctx context.Context, tenantID string) SessionHealth {
	w.mu.Lock()
	h := w.recordLocked(tenantID)
	h.LastReconnectAttemptAt = time.Time{}
	w.mu.Unlock()

	return w.attemptReconnect(ctx, tenantID)
}

// gcStaleRecords drops health records for tenants that are no longer
// configured for messaging. Records carry no external side effects, so
// dropping them is always safe.
func (w *Watchdog) gcStaleRecords() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tenants, err := w.tenants.ListMessagingTenants(ctx)
	if err != nil {
		w.logger.Error("gc: listing tenants", "error", err)
		return
	}

	active := make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		active[t.ID] = struct{}{}
	}

	w.mu.Lock()
	var removed int
	for id := range w.health {
		if _, ok := active[id]; !ok {
			delete(w.health, id)
			removed++
		}
	}
	w.mu.Unlock()

	if removed > 0 {
		w.logger.Info("gc removed stale health records", "count", removed)
	}
}
