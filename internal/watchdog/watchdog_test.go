// ABOUTME: Tests for the watchdog's probe loop, reconnect policy, and
// ABOUTME: edge-triggered alerting, using a fake session router.

package watchdog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywell/session-gateway/internal/alert"
	"github.com/relaywell/session-gateway/internal/provider"
	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

type fakeRouter struct {
	mu           sync.Mutex
	connected    map[string]bool
	statusErr    map[string]error
	startSuccess bool
	startCalls   []string
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{
		connected: make(map[string]bool),
		statusErr: make(map[string]error),
	}
}

func (f *fakeRouter) SessionStatus(_ context.Context, tenantID string) (provider.StatusOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErr[tenantID]; err != nil {
		return provider.StatusOutcome{}, err
	}
	up := f.connected[tenantID]
	state := sessiongw.StateDisconnected
	if up {
		state = sessiongw.StateConnected
	}
	return provider.StatusOutcome{Connected: up, State: state}, nil
}

func (f *fakeRouter) StartSession(_ context.Context, tenantID string) (provider.StartOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, tenantID)
	if !f.startSuccess {
		return provider.StartOutcome{Success: false, Message: "gateway refused"}, nil
	}
	return provider.StartOutcome{Success: true}, nil
}

func (f *fakeRouter) starts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.startCalls...)
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *recordingSink) Send(_ context.Context, a alert.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingSink) all() []alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alert.Alert(nil), r.alerts...)
}

func newTestWatchdog(t *testing.T, router *fakeRouter, tenants TenantLister) (*Watchdog, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	w := New(Options{
		Router:         router,
		Tenants:        tenants,
		Sink:           sink,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval:       time.Minute,
		Cooldown:       time.Minute,
		MaxFailures:    5,
		AlertThreshold: 3,
		Env:            "test",
	})
	return w, sink
}

func seedTenants(t *testing.T, ids ...string) *store.MockStore {
	t.Helper()
	mock := store.NewMockStore()
	for _, id := range ids {
		require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
			ID: id, Name: id, Provider: "auto",
		}))
	}
	return mock
}

func TestConnectedProbeResetsFailures(t *testing.T) {
	router := newFakeRouter()
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	router.connected["t1"] = false
	h := w.CheckTenantSession(context.Background(), "t1")
	assert.False(t, h.Connected)
	assert.Equal(t, 1, h.ConsecutiveFailures)

	router.connected["t1"] = true
	h = w.CheckTenantSession(context.Background(), "t1")
	assert.True(t, h.Connected)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.False(t, h.ConnectedSinceAt.IsZero())
	assert.False(t, h.LastCheckedAt.IsZero())
}

func TestDisconnectedProbeTriggersOptimisticReconnect(t *testing.T) {
	router := newFakeRouter()
	router.startSuccess = true
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	h := w.CheckTenantSession(context.Background(), "t1")

	require.Equal(t, []string{"t1"}, router.starts())
	assert.True(t, h.Connected, "successful reconnect marks connected optimistically")
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.False(t, h.LastReconnectAttemptAt.IsZero())
}

func TestReconnectCooldownSpacesAttempts(t *testing.T) {
	router := newFakeRouter()
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	w.CheckTenantSession(context.Background(), "t1")
	require.Len(t, router.starts(), 1)

	// Second failed probe lands inside the cooldown window.
	w.CheckTenantSession(context.Background(), "t1")
	assert.Len(t, router.starts(), 1, "no second attempt before cooldown elapses")
}

func TestShouldAttemptReconnect(t *testing.T) {
	w, _ := newTestWatchdog(t, newFakeRouter(), seedTenants(t))

	tests := []struct {
		name   string
		health SessionHealth
		want   bool
	}{
		{"never attempted", SessionHealth{ConsecutiveFailures: 1}, true},
		{"cooldown elapsed", SessionHealth{
			ConsecutiveFailures:    5,
			LastReconnectAttemptAt: time.Now().Add(-2 * time.Minute),
		}, true},
		{"within cooldown", SessionHealth{
			ConsecutiveFailures:    2,
			LastReconnectAttemptAt: time.Now().Add(-10 * time.Second),
		}, false},
		{"stalled past max failures", SessionHealth{
			ConsecutiveFailures:    6,
			LastReconnectAttemptAt: time.Now().Add(-time.Hour),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldAttemptReconnect(tt.health))
		})
	}
}

func TestAlertFiresExactlyOncePerStreak(t *testing.T) {
	router := newFakeRouter()
	w, sink := newTestWatchdog(t, router, seedTenants(t, "t1"))
	w.cooldown = 0 // every eligible tick attempts, and every attempt is refused

	for i := 0; i < 10; i++ {
		w.CheckTenantSession(context.Background(), "t1")
	}

	alerts := sink.all()
	require.Len(t, alerts, 1, "streak 1..10 must alert exactly once")
	assert.Equal(t, "t1", alerts[0].TenantID)
	assert.Equal(t, 3, alerts[0].ConsecutiveFailures)
	assert.Equal(t, "session_alert", alerts[0].Type)

	h := w.SessionHealth("t1")
	require.NotNil(t, h)
	assert.Equal(t, 10, h.ConsecutiveFailures)
	assert.True(t, h.Stalled(5))
}

func TestStalledTenantStopsReconnecting(t *testing.T) {
	router := newFakeRouter()
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))
	w.cooldown = 0

	for i := 0; i < 10; i++ {
		w.CheckTenantSession(context.Background(), "t1")
	}

	// Attempts happen while failures ≤ maxFailures (ticks 1-5), then stop.
	assert.Len(t, router.starts(), 5)
}

func TestForceReconnectBypassesCooldown(t *testing.T) {
	router := newFakeRouter()
	router.startSuccess = true
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	w.CheckTenantSession(context.Background(), "t1")
	require.Len(t, router.starts(), 1)

	h := w.ForceReconnect(context.Background(), "t1")
	assert.Len(t, router.starts(), 2, "forced attempt ignores the cooldown stamp")
	assert.True(t, h.Connected)
}

func TestTickSweepsMessagingTenantsOnly(t *testing.T) {
	router := newFakeRouter()
	mock := seedTenants(t, "t1", "t2")
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t3", Name: "disabled", Provider: store.ProviderNone,
	}))
	w, _ := newTestWatchdog(t, router, mock)
	router.connected["t1"] = true
	router.connected["t2"] = true

	w.RunHealthCheckTick(context.Background())

	assert.NotNil(t, w.SessionHealth("t1"))
	assert.NotNil(t, w.SessionHealth("t2"))
	assert.Nil(t, w.SessionHealth("t3"), "provider=none tenants are never probed")

	stats := w.Stats()
	assert.Equal(t, Stats{Total: 2, Connected: 2}, stats)
}

func TestTickIsolatesTenantFailures(t *testing.T) {
	router := newFakeRouter()
	router.statusErr["t1"] = errors.New("gateway exploded")
	router.connected["t2"] = true
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1", "t2"))

	w.RunHealthCheckTick(context.Background())

	h1 := w.SessionHealth("t1")
	require.NotNil(t, h1)
	assert.Equal(t, 1, h1.ConsecutiveFailures, "probe error counts as a failure")

	h2 := w.SessionHealth("t2")
	require.NotNil(t, h2, "one tenant's error must not abort the sweep")
	assert.True(t, h2.Connected)
}

func TestTickDoesNotReenter(t *testing.T) {
	router := newFakeRouter()
	router.connected["t1"] = true
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	w.ticking.Store(true)
	w.RunHealthCheckTick(context.Background())
	assert.Nil(t, w.SessionHealth("t1"), "overlapping tick must be skipped")

	w.ticking.Store(false)
	w.RunHealthCheckTick(context.Background())
	assert.NotNil(t, w.SessionHealth("t1"))
}

func TestGCRemovesStaleRecords(t *testing.T) {
	router := newFakeRouter()
	router.connected["t1"] = true
	router.connected["t2"] = true
	mock := seedTenants(t, "t1", "t2")
	w, _ := newTestWatchdog(t, router, mock)

	w.RunHealthCheckTick(context.Background())
	require.Equal(t, 2, w.Stats().Total)

	require.NoError(t, mock.DeleteTenant(context.Background(), "t2"))
	w.gcStaleRecords()

	assert.Equal(t, 1, w.Stats().Total)
	assert.Nil(t, w.SessionHealth("t2"))
	assert.NotNil(t, w.SessionHealth("t1"))
}

func TestStartStop(t *testing.T) {
	router := newFakeRouter()
	router.connected["t1"] = true
	w, _ := newTestWatchdog(t, router, seedTenants(t, "t1"))

	w.Start()
	// The initial sweep runs immediately on start.
	require.Eventually(t, func() bool {
		return w.SessionHealth("t1") != nil
	}, time.Second, 10*time.Millisecond)
	w.Stop()
}
