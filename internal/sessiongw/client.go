// ABOUTME: HTTP client for the external browser-automation session gateway.
// ABOUTME: Owns session lifecycle calls, the starting guard, and QR re-encoding.

package sessiongw

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relaywell/session-gateway/internal/guard"
	"github.com/relaywell/session-gateway/internal/metrics"
)

// State is the connection state reported by the gateway for a tenant session.
type State string

const (
	StateConnected    State = "CONNECTED"
	StateDisconnected State = "DISCONNECTED"
	StateOpening      State = "OPENING"
	StateUnknown      State = "unknown"
)

// Connected reports whether the state represents a live session.
func (s State) Connected() bool {
	return s == StateConnected
}

// StartResult is the outcome of a start-session call.
type StartResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Messages returned by StartSession without touching the network.
const (
	MessageSessionStarting  = "session_starting"
	MessageAlreadyConnected = "already_connected"
)

// QRResult is the outcome of a QR fetch. It is a tagged result, not an error:
// QR unavailability is an expected soft failure.
type QRResult struct {
	Available bool   `json:"available"`
	QR        string `json:"qr,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SendResult is the outcome of a message send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
}

// GatewayError is a typed transport failure from the session gateway. It
// carries the gateway's reported message, or the HTTP status text when the
// body had none.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("session gateway: %s (status %d)", e.Message, e.StatusCode)
}

// envelope is the JSON shape shared by all gateway responses.
type envelope struct {
	Success   bool    `json:"success"`
	State     *string `json:"state"`
	Message   string  `json:"message"`
	QR        string  `json:"qr"`
	Result    bool    `json:"result"`
	MessageID string  `json:"messageId"`
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Client is a stateless HTTP adapter for the session gateway. The only
// in-process state it owns is the starting guard, which collapses concurrent
// start calls for the same tenant.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	starting *guard.InFlight
	logger   *slog.Logger
	recorder metrics.Recorder
}

// New creates a Client. Every call is bounded by the configured timeout so a
// single unresponsive tenant cannot stall the watchdog's sequential sweep.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		http:     &http.Client{Timeout: timeout},
		starting: guard.New(),
		logger:   logger.With("component", "sessiongw"),
		recorder: recorder,
	}
}

// StartSession initiates a session for the tenant. Concurrent calls for the
// same tenant collapse into one underlying gateway call: late arrivals get
// {success, "session_starting"} without touching the network. A tenant whose
// session is already connected gets {success, "already_connected"} so a live
// session is never disrupted by a redundant start.
func (c *Client) StartSession(ctx context.Context, tenantID string) (StartResult, error) {
	if c.starting.Held(tenantID) {
		return StartResult{Success: true, Message: MessageSessionStarting}, nil
	}

	status, err := c.SessionStatus(ctx, tenantID)
	if err == nil && status.Connected() {
		return StartResult{Success: true, Message: MessageAlreadyConnected}, nil
	}

	if !c.starting.TryAcquire(tenantID) {
		return StartResult{Success: true, Message: MessageSessionStarting}, nil
	}
	defer c.starting.Release(tenantID)

	env, err := c.get(ctx, "start", "/session/start/"+tenantID)
	if err != nil {
		return StartResult{}, err
	}

	c.logger.Info("session start requested", "tenant_id", tenantID, "message", env.Message)
	return StartResult{Success: env.Success, Message: env.Message}, nil
}

// Starting reports whether a start call for the tenant is currently in flight.
func (c *Client) Starting(tenantID string) bool {
	return c.starting.Held(tenantID)
}

// SessionStatus returns the tenant session's connection state. Pure
// passthrough, no caching.
func (c *Client) SessionStatus(ctx context.Context, tenantID string) (State, error) {
	env, err := c.get(ctx, "status", "/session/status/"+tenantID)
	if err != nil {
		return StateUnknown, err
	}
	if env.State == nil {
		return StateUnknown, nil
	}
	switch State(*env.State) {
	case StateConnected, StateDisconnected, StateOpening:
		return State(*env.State), nil
	default:
		return StateUnknown, nil
	}
}

// QRCodeImage fetches the pairing QR as a PNG and re-encodes it as a base64
// data URL. Never returns an error: any failure yields Available=false with a
// human-readable reason.
func (c *Client) QRCodeImage(ctx context.Context, tenantID string) QRResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/session/qr/"+tenantID+"/image", nil)
	if err != nil {
		return QRResult{Available: false, Message: "QR not available"}
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.GatewayRequest("qr_image", 0)
		c.logger.Debug("qr image fetch failed", "tenant_id", tenantID, "error", err)
		return QRResult{Available: false, Message: "QR not available"}
	}
	defer resp.Body.Close()
	c.recorder.GatewayRequest("qr_image", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QRResult{Available: false, Message: "QR not available"}
	}

	png, err := io.ReadAll(resp.Body)
	if err != nil || len(png) == 0 {
		return QRResult{Available: false, Message: "QR not available"}
	}

	return QRResult{
		Available: true,
		QR:        "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}
}

// QRCodeText fetches the text form of the pairing QR for non-image consumers.
// Best-effort like QRCodeImage.
func (c *Client) QRCodeText(ctx context.Context, tenantID string) QRResult {
	env, err := c.get(ctx, "qr_text", "/session/qr/"+tenantID)
	if err != nil || !env.Success || env.QR == "" {
		return QRResult{Available: false, Message: "QR not available"}
	}
	return QRResult{Available: true, QR: env.QR}
}

// RestartSession asks the gateway to restart the tenant session.
func (c *Client) RestartSession(ctx context.Context, tenantID string) (StartResult, error) {
	env, err := c.get(ctx, "restart", "/session/restart/"+tenantID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Success: env.Success, Message: env.Message}, nil
}

// TerminateSession tears the tenant session down.
func (c *Client) TerminateSession(ctx context.Context, tenantID string) (StartResult, error) {
	env, err := c.get(ctx, "terminate", "/session/terminate/"+tenantID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Success: env.Success, Message: env.Message}, nil
}

// Ping probes the gateway itself (not a tenant session). Best-effort: any
// failure is reported as false.
func (c *Client) Ping(ctx context.Context) bool {
	env, err := c.get(ctx, "ping", "/ping")
	if err != nil {
		return false
	}
	return env.Success
}

// get issues an authenticated GET and decodes the JSON envelope. Non-2xx
// responses become a *GatewayError carrying the gateway's message.
func (c *Client) get(ctx context.Context, endpoint, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	return c.do(endpoint, req)
}

// post issues an authenticated JSON POST and decodes the envelope.
func (c *Client) post(ctx context.Context, endpoint, path string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return c.do(endpoint, req)
}

func (c *Client) do(endpoint string, req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.GatewayRequest(endpoint, 0)
		return nil, &GatewayError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()
	c.recorder.GatewayRequest(endpoint, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: "reading response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gatewayMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error()}
	}
	return &env, nil
}

// gatewayMessage extracts the gateway's reported message from an error body.
func gatewayMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}
