// Package gateway wires the session-gateway components together and serves
// the ops HTTP API: tenant management, session lifecycle, message sending,
// health queries, and API token administration. Liveness and readiness
// endpoints plus the Prometheus scrape path live outside the auth boundary;
// everything under /api/ is authenticated when a JWT secret is configured.
package gateway
