// ABOUTME: Tests for alert payload construction and webhook delivery/retry.

package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSessionAlert(t *testing.T) {
	last := time.Now().Add(-time.Minute)
	a := NewSessionAlert("t1", 3, last, "production")

	assert.Equal(t, "session_alert", a.Type)
	assert.Equal(t, "high", a.Severity)
	assert.Equal(t, "t1", a.TenantID)
	assert.Equal(t, 3, a.ConsecutiveFailures)
	assert.Equal(t, last, a.LastCheck)
	assert.Equal(t, "production", a.Env)
	assert.Contains(t, a.Message, "t1")
	assert.Contains(t, a.Message, "3 consecutive")
	assert.False(t, a.At.IsZero())
}

func TestWebhookSinkDelivers(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, discardLogger())
	sink.Send(context.Background(), NewSessionAlert("t1", 3, time.Now(), "test"))

	assert.Equal(t, "session_alert", got.Type)
	assert.Equal(t, "t1", got.TenantID)
}

func TestWebhookSinkRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, discardLogger())
	sink.Send(context.Background(), NewSessionAlert("t1", 3, time.Now(), "test"))

	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookSinkGivesUpQuietly(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:1/nope", discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Must return, not panic or propagate.
	sink.Send(ctx, NewSessionAlert("t1", 3, time.Now(), "test"))
}

type recordingSink struct{ alerts []Alert }

func (r *recordingSink) Send(_ context.Context, a Alert) { r.alerts = append(r.alerts, a) }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	multi := MultiSink{a, b}

	multi.Send(context.Background(), NewSessionAlert("t1", 5, time.Now(), "test"))

	require.Len(t, a.alerts, 1)
	require.Len(t, b.alerts, 1)
	assert.Equal(t, "t1", a.alerts[0].TenantID)
}
