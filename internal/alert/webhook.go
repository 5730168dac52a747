// ABOUTME: Webhook alert sink with constant-interval retry.

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	webhookTimeout    = 10 * time.Second
	webhookRetries    = 3
	webhookRetryDelay = 2 * time.Second
)

// WebhookSink POSTs alerts as JSON to a fixed URL, retrying a few times on
// failure before giving up and logging.
type WebhookSink struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

func NewWebhookSink(url string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		http:   &http.Client{Timeout: webhookTimeout},
		logger: logger.With("component", "alert", "sink", "webhook"),
	}
}

func (s *WebhookSink) Send(ctx context.Context, a Alert) {
	payload, err := json.Marshal(a)
	if err != nil {
		s.logger.Error("encoding alert", "tenant_id", a.TenantID, "error", err)
		return
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(webhookRetryDelay), webhookRetries),
		ctx)

	err = backoff.Retry(func() error {
		return s.post(ctx, payload)
	}, policy)
	if err != nil {
		s.logger.Error("alert delivery failed", "tenant_id", a.TenantID, "url", s.url, "error", err)
		return
	}

	s.logger.Info("alert delivered", "tenant_id", a.TenantID, "failures", a.ConsecutiveFailures)
}

func (s *WebhookSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
