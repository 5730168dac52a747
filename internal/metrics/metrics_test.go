// ABOUTME: Tests for the Prometheus Recorder implementation.
// ABOUTME: Reads collector values back through the client_model DTO types.

package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherValue finds a metric family by name and returns the value of the
// first metric matching all given label pairs.
func gatherValue(t *testing.T, p *Prometheus, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := p.registry.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestPrometheus_SessionConnected(t *testing.T) {
	p := NewPrometheus()

	p.SetSessionConnected("t1", true)
	assert.Equal(t, 1.0, gatherValue(t, p, "session_connected", map[string]string{"tenant_id": "t1"}))

	p.SetSessionConnected("t1", false)
	assert.Equal(t, 0.0, gatherValue(t, p, "session_connected", map[string]string{"tenant_id": "t1"}))
}

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.HealthCheck(OutcomeSuccess)
	p.HealthCheck(OutcomeSuccess)
	p.HealthCheck(OutcomeDisconnected)
	p.ReconnectAttempt(OutcomeFailed)
	p.AlertSent()
	p.GatewayRequest("status", 200)

	assert.Equal(t, 2.0, gatherValue(t, p, "session_health_checks_total", map[string]string{"outcome": "success"}))
	assert.Equal(t, 1.0, gatherValue(t, p, "session_health_checks_total", map[string]string{"outcome": "disconnected"}))
	assert.Equal(t, 1.0, gatherValue(t, p, "session_reconnect_attempts_total", map[string]string{"outcome": "failed"}))
	assert.Equal(t, 1.0, gatherValue(t, p, "session_alerts_sent_total", nil))
	assert.Equal(t, 1.0, gatherValue(t, p, "gateway_requests_total", map[string]string{"endpoint": "status", "status": "200"}))
}

func TestPrometheus_TickDuration(t *testing.T) {
	p := NewPrometheus()

	p.TickDuration(250 * time.Millisecond)
	p.TickDuration(2 * time.Second)

	assert.Equal(t, 2.0, gatherValue(t, p, "watchdog_tick_duration_seconds", nil))
}

func TestNopRecorderIsSafe(t *testing.T) {
	var r Recorder = Nop{}
	r.SetSessionConnected("t1", true)
	r.HealthCheck(OutcomeError)
	r.ReconnectAttempt(OutcomeSuccess)
	r.AlertSent()
	r.TickDuration(time.Second)
	r.GatewayRequest("ping", 200)
}
