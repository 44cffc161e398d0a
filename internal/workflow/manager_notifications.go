package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bobbin/internal/logging"
	"bobbin/internal/notifications"
	"bobbin/internal/queue"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if stageErr == nil {
		return
	}
	m.publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": fmt.Sprintf("%s (job #%d %s)", stageName, item.ID, item.Label()),
	})
}

func (m *Manager) onRunStarted(ctx context.Context) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, could not get queue stats for start notification")
			return
		}
		logging.WarnWithContext(m.logger, "queue stats unavailable for start notification; notification skipped", "queue_stats_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "start notification will not be sent"),
		)
		return
	}
	m.publish(ctx, notifications.EventRunStarted, notifications.Payload{"count": stats[queue.StatusQueued]})
}

func (m *Manager) onJobCompleted(ctx context.Context, item *queue.Item) {
	m.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"title":  item.Label(),
		"output": item.MarkdownPath,
	})
}

func (m *Manager) onRunFinished(ctx context.Context, processed, failed int, duration time.Duration) {
	m.publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"processed": processed,
		"failed":    failed,
		"duration":  duration,
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
