// ABOUTME: Prometheus collectors for session health, reconnects, and gateway calls.
// ABOUTME: Exposes a Recorder interface so components stay testable without a registry.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health-check outcomes recorded per probe.
const (
	OutcomeSuccess      = "success"
	OutcomeDisconnected = "disconnected"
	OutcomeError        = "error"
	OutcomeFailed       = "failed"
)

// Recorder receives observability events from the watchdog and the session
// gateway adapter. The Prometheus implementation is used in production; tests
// use Nop or a fresh Prometheus instance.
type Recorder interface {
	SetSessionConnected(tenantID string, connected bool)
	HealthCheck(outcome string)
	ReconnectAttempt(outcome string)
	AlertSent()
	TickDuration(d time.Duration)
	GatewayRequest(endpoint string, status int)
}

// Prometheus implements Recorder backed by a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	sessionConnected  *prometheus.GaugeVec
	healthChecks      *prometheus.CounterVec
	reconnectAttempts *prometheus.CounterVec
	alertsSent        prometheus.Counter
	tickDuration      prometheus.Histogram
	gatewayRequests   *prometheus.CounterVec
}

// NewPrometheus creates a Recorder with all collectors registered on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		sessionConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_connected",
			Help: "Last observed connection state per tenant (1 connected, 0 disconnected).",
		}, []string{"tenant_id"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_health_checks_total",
			Help: "Session health probes by outcome.",
		}, []string{"outcome"}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_reconnect_attempts_total",
			Help: "Automatic reconnect attempts by outcome.",
		}, []string{"outcome"}),
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_alerts_sent_total",
			Help: "Sustained-failure alerts handed to the alert sinks.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchdog_tick_duration_seconds",
			Help:    "Duration of full watchdog health-check sweeps.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "HTTP calls to the external session gateway by endpoint and status.",
		}, []string{"endpoint", "status"}),
	}

	p.registry.MustRegister(
		p.sessionConnected,
		p.healthChecks,
		p.reconnectAttempts,
		p.alertsSent,
		p.tickDuration,
		p.gatewayRequests,
	)
	return p
}

// Handler returns the HTTP handler serving the metrics registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) SetSessionConnected(tenantID string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	p.sessionConnected.WithLabelValues(tenantID).Set(v)
}

func (p *Prometheus) HealthCheck(outcome string) {
	p.healthChecks.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ReconnectAttempt(outcome string) {
	p.reconnectAttempts.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AlertSent() {
	p.alertsSent.Inc()
}

func (p *Prometheus) TickDuration(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}

func (p *Prometheus) GatewayRequest(endpoint string, status int) {
	p.gatewayRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) SetSessionConnected(string, bool) {}
func (Nop) HealthCheck(string)               {}
func (Nop) ReconnectAttempt(string)          {}
func (Nop) AlertSent()                       {}
func (Nop) TickDuration(time.Duration)       {}
func (Nop) GatewayRequest(string, int)       {}
