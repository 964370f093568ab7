package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortuna/internal/logging"
	"fortuna/internal/notifications"
	"fortuna/internal/queue"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
	contextLabel := fmt.Sprintf("%s (work #%d)", stageName, item.ID)
	if err := m.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": contextLabel,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("run shutting down, could not send error notification")
		} else {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}

// onWorkStarted publishes the run-started notification the first time any
// work of the run enters processing.
func (m *Manager) onWorkStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.StatsForRun(ctx, m.runID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("run shutting down, could not get ledger stats for start notification")
		} else {
			m.logger.Warn("ledger stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_stats_failed"),
				logging.String(logging.FieldErrorHint, "check ledger database access"),
				logging.String(logging.FieldImpact, "start notification will not be sent"),
			)
		}
		return
	}
	m.mu.Lock()
	if m.runActive {
		m.mu.Unlock()
		return
	}
	m.runActive = true
	m.runStart = time.Now()
	m.mu.Unlock()

	count := countActiveWorks(stats)
	if err := m.notifier.Publish(ctx, notifications.EventRunStarted, notifications.Payload{"count": count}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("run shutting down, could not send run start notification")
		} else {
			m.logger.Debug("run start notification failed", logging.Error(err))
		}
	}
}

// checkRunCompletion publishes the run-completed notification once every work
// of the run has reached a terminal status.
func (m *Manager) checkRunCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.StatsForRun(ctx, m.runID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("run shutting down, could not check run completion")
		} else {
			m.logger.Warn("ledger stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_stats_failed"),
				logging.String(logging.FieldErrorHint, "check ledger database access"),
				logging.String(logging.FieldImpact, "completion notification will not be sent"),
			)
		}
		return
	}
	if active := countActiveWorks(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.runActive {
		m.mu.Unlock()
		return
	}
	start := m.runStart
	m.runActive = false
	m.runStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	processed := stats[queue.StatusCompleted]
	failed := stats[queue.StatusFailed]
	if err := m.notifier.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"processed": processed,
		"failed":    failed,
		"duration":  duration,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("run shutting down, could not send run completion notification")
		} else {
			m.logger.Debug("run completion notification failed", logging.Error(err))
		}
	}
}

func countActiveWorks(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if status == queue.StatusCompleted || status == queue.StatusFailed {
			continue
		}
		total += count
	}
	return total
}
