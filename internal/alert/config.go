// ABOUTME: Builds the configured alert sink stack.

package alert

import (
	"log/slog"

	"github.com/relaywell/session-gateway/internal/config"
)

// FromConfig assembles the alert sinks named in the config. With nothing
// configured it returns a NopSink so callers never nil-check.
func FromConfig(cfg config.AlertsConfig, logger *slog.Logger) (Sink, error) {
	var sinks MultiSink

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, logger))
	}

	if cfg.Matrix.Enabled {
		matrix, err := NewMatrixSink(cfg.Matrix.Homeserver, cfg.Matrix.UserID,
			cfg.Matrix.AccessToken, cfg.Matrix.RoomID, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, matrix)
	}

	if len(sinks) == 0 {
		return NopSink{}, nil
	}
	return sinks, nil
}
