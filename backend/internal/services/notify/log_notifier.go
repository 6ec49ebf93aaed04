package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

// LogNotifier only writes the notification to the log. Used when no delivery
// channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg model.Notification) error {
	n.logger.Info("notification",
		zap.String("notification_id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.Int64("user_id", msg.UserID),
		zap.Int64("counterpart_id", msg.CounterpartID),
	)
	return nil
}
