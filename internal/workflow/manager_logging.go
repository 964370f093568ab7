package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
)

func (m *Manager) workerLogger(worker *workerState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-worker"),
		logging.String(logging.FieldWorker, worker.label),
	)
}

// stageLogger derives the logger handed to stage handlers. Work, stage,
// worker, and correlation fields ride along on the context so every record a
// handler emits carries them.
func (m *Manager) stageLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, worker *workerState, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithWorkID(ctx, item.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if worker != nil && strings.TrimSpace(worker.label) != "" {
		ctx = services.WithWorker(ctx, strings.TrimSpace(worker.label))
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
