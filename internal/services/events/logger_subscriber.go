package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
)

// NewLoggerSubscriber traces every task event at debug level
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.TaskEvent) error {
		entry := logger.Debug().
			Str("event_type", string(event.Type)).
			Str("occurred_at", event.OccurredAt.Format("15:04:05.000"))

		if task := event.Task; task != nil {
			entry = entry.
				Str("task_id", task.ID).
				Str("user_id", task.UserID).
				Str("state", string(task.State))
		}

		entry.Msg("Task event")
		return nil
	}
}

func SubscribeLoggerToAllEvents(bus interfaces.EventService, logger arbor.ILogger) error {
	if _, err := bus.Subscribe(NewLoggerSubscriber(logger)); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}
	return nil
}
