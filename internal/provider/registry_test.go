// ABOUTME: Tests for provider kind parsing and registry routing, including
// ABOUTME: tenant-not-found errors and legacy-provider refusals.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywell/session-gateway/internal/sessiongw"
	"github.com/relaywell/session-gateway/internal/store"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"auto", KindAuto},
		{"hybrid", KindHybrid},
		{"gateway", KindGateway},
		{"twilio", KindTwilio},
		{"vonage", KindVonage},
		{"dialog360", KindDialog360},
		{"cloudapi", KindCloudAPI},
		{"none", KindNone},
		{"", KindAuto},
		{"carrier-pigeon", KindAuto},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseKind(tt.in), "ParseKind(%q)", tt.in)
	}
}

func testRegistry(t *testing.T, handler http.Handler) (*Registry, *store.MockStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := sessiongw.New(sessiongw.Options{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: 5 * time.Second,
	})
	mock := store.NewMockStore()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewRegistry(mock, client, time.Millisecond, logger), mock
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func gatewayStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/session/status/"):
			json.NewEncoder(w).Encode(map[string]any{"success": true, "state": "CONNECTED"})
		case strings.HasPrefix(r.URL.Path, "/client/sendMessage/"):
			json.NewEncoder(w).Encode(map[string]any{"success": true, "messageId": "m1"})
		default:
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}
	})
}

func TestRegistryTenantNotFound(t *testing.T) {
	r, _ := testRegistry(t, gatewayStub())

	_, err := r.SessionStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = r.ResolveProvider(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestRegistryRoutesSessionKinds(t *testing.T) {
	for _, kind := range []string{"auto", "hybrid", "gateway"} {
		t.Run(kind, func(t *testing.T) {
			r, mock := testRegistry(t, gatewayStub())
			require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
				ID: "t1", Name: "Acme", Provider: kind,
			}))

			out, err := r.SessionStatus(context.Background(), "t1")
			require.NoError(t, err)
			assert.True(t, out.Connected)

			send, err := r.SendText(context.Background(), "t1", "15551234567", "hi")
			require.NoError(t, err)
			assert.True(t, send.Success)
			assert.Equal(t, "m1", send.MessageID)
		})
	}
}

func TestRegistryLegacyProviderRefuses(t *testing.T) {
	r, mock := testRegistry(t, gatewayStub())
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "twilio",
	}))

	start, err := r.StartSession(context.Background(), "t1")
	require.NoError(t, err, "legacy provider must refuse, not error")
	assert.False(t, start.Success)
	assert.Equal(t, ReasonNotImplemented, start.Message)

	send, err := r.SendText(context.Background(), "t1", "15551234567", "hi")
	require.NoError(t, err)
	assert.False(t, send.Success)
	assert.Equal(t, ReasonNotImplemented, send.Message)
}

func TestRegistryUnknownProviderFallsBackToAuto(t *testing.T) {
	r, mock := testRegistry(t, gatewayStub())
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "carrier-pigeon",
	}))

	out, err := r.SessionStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, out.Connected, "unknown kind should route to the session adapter")
}

func TestRegistryEmptyProviderRoutesToGateway(t *testing.T) {
	var startCalls atomic.Int64
	r, mock := testRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(req.URL.Path, "/session/status/"):
			json.NewEncoder(w).Encode(map[string]any{"success": true, "state": "DISCONNECTED"})
		case strings.HasPrefix(req.URL.Path, "/session/start/"):
			startCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}
	}))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme",
	}))

	kind, err := r.ResolveProvider(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, KindAuto, kind, "a tenant without a provider gets the default backend")

	out, err := r.StartSession(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.EqualValues(t, 1, startCalls.Load(), "empty provider must reach the gateway, not a stub")
}

func TestRegistryUnknownProviderLogsFallback(t *testing.T) {
	srv := httptest.NewServer(gatewayStub())
	t.Cleanup(srv.Close)
	client := sessiongw.New(sessiongw.Options{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: 5 * time.Second,
	})

	var buf bytes.Buffer
	mock := store.NewMockStore()
	r := NewRegistry(mock, client, time.Millisecond, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "carrier-pigeon",
	}))

	_, err := r.ResolveProvider(context.Background(), "t1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unrecognized provider")
	assert.Contains(t, buf.String(), "carrier-pigeon")
}

func TestRegistryHealthCheck(t *testing.T) {
	r, _ := testRegistry(t, gatewayStub())
	assert.True(t, r.HealthCheck(context.Background()))

	down, _ := testRegistry(t, gatewayStub())
	srv := httptest.NewServer(gatewayStub())
	srv.Close()
	down.client = sessiongw.New(sessiongw.Options{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: time.Second,
	})
	assert.False(t, down.HealthCheck(context.Background()))
}

func TestRegistrySendTransportErrorBecomesOutcome(t *testing.T) {
	r, mock := testRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"browser crashed"}`, http.StatusBadGateway)
	}))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "auto",
	}))

	send, err := r.SendText(context.Background(), "t1", "15551234567", "hi")
	require.NoError(t, err, "transport failure on a send is an outcome, not an error")
	assert.False(t, send.Success)
	assert.Contains(t, send.Message, "browser crashed")
}

func TestRegistryStatusTransportErrorPropagates(t *testing.T) {
	r, mock := testRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "auto",
	}))

	_, err := r.SessionStatus(context.Background(), "t1")
	require.Error(t, err)

	var gwErr *sessiongw.GatewayError
	assert.ErrorAs(t, err, &gwErr)
}

func TestSessionAdapterSkipsQRUnlessStartSucceeded(t *testing.T) {
	var qrCalls atomic.Int64
	r, mock := testRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(req.URL.Path, "/session/status/"):
			json.NewEncoder(w).Encode(map[string]any{"success": true, "state": "DISCONNECTED"})
		case strings.HasPrefix(req.URL.Path, "/session/start/"):
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "rate limited"})
		case strings.HasPrefix(req.URL.Path, "/session/qr/"):
			qrCalls.Add(1)
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "auto",
	}))

	out, err := r.StartSession(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Nil(t, out.QR, "a refused start hands out no QR")
	assert.EqualValues(t, 0, qrCalls.Load())
}

func TestSessionAdapterAttachesQRWhenDisconnected(t *testing.T) {
	r, mock := testRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/session/status/"):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"success": true, "state": "DISCONNECTED"})
		case strings.HasSuffix(req.URL.Path, "/image"):
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	require.NoError(t, mock.UpsertTenant(context.Background(), &store.Tenant{
		ID: "t1", Name: "Acme", Provider: "auto",
	}))

	out, err := r.SessionStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, out.Connected)
	require.NotNil(t, out.QR)
	assert.True(t, out.QR.Available)
}
