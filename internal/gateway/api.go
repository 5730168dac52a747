// ABOUTME: Ops HTTP API handlers: tenant CRUD, session lifecycle, message
// ABOUTME: sending, health queries, and API token management.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaywell/session-gateway/internal/auth"
	"github.com/relaywell/session-gateway/internal/provider"
	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

// apiMux builds the ops API route table.
func (g *Gateway) apiMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tenants", g.handleListTenants)
	mux.HandleFunc("POST /api/tenants", g.handleUpsertTenant)
	mux.HandleFunc("GET /api/tenants/{id}", g.handleGetTenant)
	mux.HandleFunc("DELETE /api/tenants/{id}", g.handleDeleteTenant)

	mux.HandleFunc("POST /api/tenants/{id}/session/start", g.handleStartSession)
	mux.HandleFunc("GET /api/tenants/{id}/session/status", g.handleSessionStatus)
	mux.HandleFunc("GET /api/tenants/{id}/session/qr", g.handleSessionQR)
	mux.HandleFunc("POST /api/tenants/{id}/session/restart", g.handleRestartSession)
	mux.HandleFunc("POST /api/tenants/{id}/session/disconnect", g.handleDisconnect)

	mux.HandleFunc("POST /api/tenants/{id}/messages", g.handleSendMessage)
	mux.HandleFunc("GET /api/tenants/{id}/contacts/{phone}/exists", g.handleContactExists)
	mux.HandleFunc("GET /api/tenants/{id}/provider", g.handleResolveProvider)

	mux.HandleFunc("GET /api/tenants/{id}/health", g.handleTenantHealth)
	mux.HandleFunc("POST /api/tenants/{id}/health/check", g.handleForceCheck)
	mux.HandleFunc("POST /api/tenants/{id}/health/reconnect", g.handleForceReconnect)
	mux.HandleFunc("GET /api/health/stats", g.handleHealthStats)
	mux.HandleFunc("GET /api/healthz", g.handleHealthz)

	mux.HandleFunc("GET /api/tokens", g.handleListTokens)
	mux.HandleFunc("POST /api/tokens", g.handleCreateToken)
	mux.HandleFunc("DELETE /api/tokens/{id}", g.handleDeleteToken)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeRegistryError maps registry errors onto HTTP statuses.
func writeRegistryError(w http.ResponseWriter, err error) {
	if errors.Is(err, provider.ErrTenantNotFound) {
		writeError(w, http.StatusNotFound, "tenant_not_found")
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func (g *Gateway) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.store.ListTenants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

type upsertTenantRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	PhoneNumberID string `json:"phone_number_id"`
	APIToken      string `json:"api_token"`
}

func (g *Gateway) handleUpsertTenant(w http.ResponseWriter, r *http.Request) {
	var req upsertTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	tenant := store.Tenant{
		ID:            req.ID,
		Name:          req.Name,
		Provider:      req.Provider,
		PhoneNumberID: req.PhoneNumberID,
		APIToken:      req.APIToken,
	}

	if err := g.store.UpsertTenant(r.Context(), &tenant); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &tenant)
}

func (g *Gateway) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := g.store.GetTenant(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tenant_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (g *Gateway) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeleteTenant(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tenant_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	out, err := g.registry.StartSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, outcomeStatus(out.Message), out)
}

// outcomeStatus maps structured refusals onto HTTP statuses. A provider that
// exists but has no implementation is a 422; everything else reports in-band
// through the outcome body.
func outcomeStatus(message string) int {
	if message == provider.ReasonNotImplemented {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func (g *Gateway) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	out, err := g.registry.SessionStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	if _, err := g.registry.ResolveProvider(r.Context(), tenantID); err != nil {
		writeRegistryError(w, err)
		return
	}

	var qr sessiongw.QRResult
	if r.URL.Query().Get("format") == "text" {
		qr = g.client.QRCodeText(r.Context(), tenantID)
	} else {
		qr = g.client.QRCodeImage(r.Context(), tenantID)
	}
	writeJSON(w, http.StatusOK, qr)
}

func (g *Gateway) handleRestartSession(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	if _, err := g.registry.ResolveProvider(r.Context(), tenantID); err != nil {
		writeRegistryError(w, err)
		return
	}
	res, err := g.client.RestartSession(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusOK, provider.StartOutcome{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, provider.StartOutcome{Success: res.Success, Message: res.Message})
}

func (g *Gateway) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := g.registry.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sendMessageRequest struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	tenantID := r.PathValue("id")
	var out provider.SendOutcome
	var err error
	switch {
	case req.MediaURL != "":
		out, err = g.registry.SendMedia(r.Context(), tenantID, req.To, req.MediaURL,
			&sessiongw.SendOptions{Caption: req.Caption, Filename: req.Filename})
	case req.Text != "":
		out, err = g.registry.SendText(r.Context(), tenantID, req.To, req.Text)
	default:
		writeError(w, http.StatusBadRequest, "text or media_url is required")
		return
	}
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, outcomeStatus(out.Message), out)
}

func (g *Gateway) handleContactExists(w http.ResponseWriter, r *http.Request) {
	exists, err := g.registry.IsRegistered(r.Context(), r.PathValue("id"), r.PathValue("phone"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (g *Gateway) handleResolveProvider(w http.ResponseWriter, r *http.Request) {
	kind, err := g.registry.ResolveProvider(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": string(kind)})
}

func (g *Gateway) handleTenantHealth(w http.ResponseWriter, r *http.Request) {
	health := g.watchdog.SessionHealth(r.PathValue("id"))
	if health == nil {
		writeError(w, http.StatusNotFound, "tenant not yet probed")
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (g *Gateway) handleForceCheck(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	if _, err := g.registry.ResolveProvider(r.Context(), tenantID); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.watchdog.ForceCheck(r.Context(), tenantID))
}

func (g *Gateway) handleForceReconnect(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	if _, err := g.registry.ResolveProvider(r.Context(), tenantID); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.watchdog.ForceReconnect(r.Context(), tenantID))
}

func (g *Gateway) handleHealthStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":    g.watchdog.Stats(),
		"sessions": g.watchdog.AllSessionsHealth(),
	})
}

// handleHealthz is the aggregate liveness view: is the external gateway
// reachable at all.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	reachable := g.registry.HealthCheck(r.Context())
	status := http.StatusOK
	if !reachable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"gatewayReachable": reachable})
}

type createTokenRequest struct {
	Name string `json:"name"`
}

func (g *Gateway) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	record, presented, err := auth.NewAPIToken(uuid.NewString(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	record.CreatedAt = time.Now().UTC()

	if err := g.store.CreateAPIToken(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The plaintext token is shown exactly once.
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    record.ID,
		"name":  record.Name,
		"token": presented,
	})
}

func (g *Gateway) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := g.store.ListAPITokens(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (g *Gateway) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeleteAPIToken(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
