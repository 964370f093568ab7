package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/stage"
)

func (m *Manager) processWork(ctx context.Context, worker *workerState, workerLogger *slog.Logger, item *queue.Item) error {
	stg, ok := m.stageForStatus(item.Status)
	if !ok {
		if workerLogger == nil {
			workerLogger = m.logger
		}
		if workerLogger == nil {
			workerLogger = logging.NewNop()
		}
		workerLogger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.waitForWorkOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, worker, stg.name, item, requestID)
	stageLogger := m.stageLogger(stageCtx, workerLogger)
	if aware, ok := stg.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	claimed, err := m.claimWork(stageCtx, stg, item)
	if err != nil {
		stageLogger.Error("failed to claim work for processing", logging.Error(err))
		m.setLastError(err)
		return err
	}
	if !claimed {
		// Another worker won the compare-and-set; move on to the next work.
		stageLogger.Debug("work already claimed", logging.String("status", string(item.Status)))
		return nil
	}

	return m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
		logging.String("source_file", strings.TrimSpace(item.SourcePath)),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		item.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, item); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, stg.name, item, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, item, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
		item.ProgressStage = deriveStageLabel(queue.StatusCompleted)
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.String("progress_stage", strings.TrimSpace(item.ProgressStage)),
		logging.String("progress_message", strings.TrimSpace(item.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	m.checkRunCompletion(ctx)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// claimWork atomically moves the work into the stage's processing status.
// The compare-and-set fails when another worker claimed the work first, in
// which case the caller skips it without error.
func (m *Manager) claimWork(ctx context.Context, stg pipelineStage, item *queue.Item) (bool, error) {
	if stg.processingStatus == "" {
		return false, errors.New("processing status must not be empty")
	}

	claimed, err := m.store.TransitionStatus(ctx, item.ID, stg.startStatus, stg.processingStatus)
	if err != nil {
		return false, fmt.Errorf("claim work: %w", err)
	}
	if !claimed {
		return false, nil
	}

	m.setWorkProcessingState(item, stg.processingStatus)
	if err := m.store.Update(ctx, item); err != nil {
		return false, fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	m.onWorkStarted(ctx)
	return true, nil
}

func (m *Manager) setWorkProcessingState(item *queue.Item, processing queue.Status) {
	now := time.Now().UTC()
	item.Status = processing
	if item.ProgressStage == "" {
		item.ProgressStage = deriveStageLabel(processing)
	}
	if item.ProgressMessage == "" {
		item.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
}
