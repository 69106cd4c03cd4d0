package events

import (
	"context"
	"log/slog"
)

// LogNotifier is the default notification sink: it records level-up and
// badge-unlock events to the log. The delivery channel (push, email) lives
// outside this engine; anything implementing Handler can replace this.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

var _ Handler = (*LogNotifier)(nil)

// HandleEvent logs one notification.
func (n *LogNotifier) HandleEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case TypeLevelUp:
		n.logger.Info("notify: level up",
			"user_id", event.UserID,
			"new_level", event.NewLevel,
		)
	case TypeBadgeUnlocked:
		n.logger.Info("notify: badge unlocked",
			"user_id", event.UserID,
			"badge_id", event.BadgeID,
			"badge_name", event.BadgeName,
		)
	default:
		n.logger.Debug("notify: unhandled event type", "event_type", event.Type)
	}
	return nil
}
