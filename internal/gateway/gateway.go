// ABOUTME: Gateway orchestrator wiring store, session client, provider
// ABOUTME: registry, watchdog, and the ops HTTP API lifecycle.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/heptiolabs/healthcheck"
	"tailscale.com/tsnet"

	"github.com/relaywell/session-gateway/internal/alert"
	"github.com/relaywell/session-gateway/internal/auth"
	"github.com/relaywell/session-gateway/internal/config"
	"github.com/relaywell/session-gateway/internal/metrics"
	"github.com/relaywell/session-gateway/internal/provider"
	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
	"github.com/relaywell/session-gateway/internal/watchdog"
)

// Gateway orchestrates the session-gateway server components: the tenant
// store, the session gateway client, the provider registry, the watchdog,
// and the ops HTTP API.
type Gateway struct {
	config      *config.Config
	store       store.Store
	client      *sessiongw.Client
	registry    *provider.Registry
	watchdog    *watchdog.Watchdog
	prom        *metrics.Prometheus
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initStore creates the tenant store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SESSION_GATEWAY_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newHealthHandler builds the liveness/readiness handler. Readiness requires
// the external session gateway to answer a ping.
func newHealthHandler(registry *provider.Registry) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddReadinessCheck("session-gateway", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if !registry.HealthCheck(ctx) {
			return errors.New("session gateway unreachable")
		}
		return nil
	})
	return health
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	var recorder metrics.Recorder = metrics.Nop{}
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	client := sessiongw.New(sessiongw.Options{
		BaseURL:  cfg.Gateway.BaseURL,
		APIKey:   cfg.Gateway.APIKey,
		Timeout:  cfg.Gateway.Timeout,
		Logger:   logger,
		Recorder: recorder,
	})

	registry := provider.NewRegistry(s, client, cfg.Watchdog.StartQRDelay, logger)

	sink, err := alert.FromConfig(cfg.Alerts, logger)
	if err != nil {
		return nil, fmt.Errorf("building alert sinks: %w", err)
	}

	dog := watchdog.New(watchdog.Options{
		Router:         registry,
		Tenants:        s,
		Sink:           sink,
		Recorder:       recorder,
		Logger:         logger,
		Interval:       cfg.Watchdog.Interval,
		Cooldown:       cfg.Watchdog.ReconnectCooldown,
		MaxFailures:    cfg.Watchdog.MaxFailures,
		AlertThreshold: cfg.Watchdog.AlertThreshold,
		GCSchedule:     cfg.Watchdog.GCSchedule,
		Env:            cfg.Alerts.Env,
	})

	gw := &Gateway{
		config:   cfg,
		store:    s,
		client:   client,
		registry: registry,
		watchdog: dog,
		prom:     prom,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	health := newHealthHandler(registry)
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)

	if prom != nil {
		mux.Handle("GET "+cfg.Metrics.Path, prom.Handler())
	}

	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Watchdog exposes the health engine to the ops API handlers.
func (g *Gateway) Watchdog() *watchdog.Watchdog {
	return g.watchdog
}

// setupListeners creates a listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting ops API", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "session-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on its port 80.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	var tsAddr string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	}
	g.logger.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", tsAddr)

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// Run starts the watchdog and the ops HTTP server, and blocks until the
// context is canceled. Returns nil on graceful shutdown, or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	g.watchdog.Start()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway and releases resources. The watchdog
// is stopped first so no probe sweep outlives the HTTP surface.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	g.watchdog.Stop()

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// registerAPIRoutes mounts the ops API, behind auth middleware when a JWT
// secret is configured.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	api := g.apiMux()

	if g.config.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		middleware := auth.Middleware(verifier, g.store)
		mux.Handle("/api/", middleware(api))
		g.logger.Info("HTTP auth middleware enabled")
		return
	}

	mux.Handle("/api/", api)
	g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
}
