package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := m.stageLogger(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	item.SetFailed(message)

	kind := failureKind(stageErr)
	logger.Error("stage failed",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.Alert("stage_failure"),
		logging.String("error_kind", kind),
		logging.String(logging.FieldErrorHint, failureHint(kind)),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("run shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
	m.checkRunCompletion(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return m.stageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = m.stageFailureMessage(stageName, "failed")
	}
	return message
}

func (m *Manager) stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}

// failureKind maps the sentinel wrapped into a stage error onto the label
// recorded in logs, so operators can filter failures by class.
func failureKind(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, services.ErrValidation):
		return "validation"
	case errors.Is(err, services.ErrConfiguration):
		return "configuration"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case errors.Is(err, services.ErrExternalService):
		return "external_service"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func failureHint(kind string) string {
	switch kind {
	case "validation":
		return "inspect the input text and rerun"
	case "configuration":
		return "fix the configuration and rerun"
	case "timeout", "external_service", "transient":
		return "check the classifier service, then retry failed works"
	default:
		return "check logs for details"
	}
}
