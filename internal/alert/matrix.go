// ABOUTME: Matrix alert sink. Posts alerts as plain text to a fixed room.

package alert

import (
	"context"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// MatrixSink delivers alerts to a Matrix room using a long-lived access
// token. No sync loop: the sink only sends.
type MatrixSink struct {
	client *mautrix.Client
	room   id.RoomID
	logger *slog.Logger
}

func NewMatrixSink(homeserver, userID, accessToken, roomID string, logger *slog.Logger) (*MatrixSink, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &MatrixSink{
		client: client,
		room:   id.RoomID(roomID),
		logger: logger.With("component", "alert", "sink", "matrix"),
	}, nil
}

func (s *MatrixSink) Send(ctx context.Context, a Alert) {
	text := fmt.Sprintf("⚠️ [%s] %s (failures: %d, last check: %s)",
		a.Env, a.Message, a.ConsecutiveFailures, a.LastCheck.Format("15:04:05 MST"))

	if _, err := s.client.SendText(ctx, s.room, text); err != nil {
		s.logger.Error("matrix alert delivery failed", "tenant_id", a.TenantID, "error", err)
		return
	}
	s.logger.Info("alert delivered", "tenant_id", a.TenantID, "failures", a.ConsecutiveFailures)
}
