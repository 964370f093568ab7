package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fortuna/internal/logging"
	"fortuna/internal/queue"
)

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	workerCount := m.cfg.Workflow.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	workers := make([]*workerState, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		worker := &workerState{label: fmt.Sprintf("worker-%d", i+1)}
		worker.logger = m.workerLogger(worker)
		// One reclaimer is enough; the rest would only repeat the same sweep.
		worker.runReclaimer = i == 0
		workers = append(workers, worker)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(workers))
	m.mu.Unlock()

	for _, worker := range workers {
		go m.runWorker(runCtx, worker)
	}

	return nil
}

// Stop terminates the worker pool and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// RunUntilDrained starts the worker pool and blocks until every work in the
// run reaches a terminal status, then stops the workers. A cancelled context
// stops processing early and returns the context error; works still in a
// processing status are resolved by the caller via the ledger.
func (m *Manager) RunUntilDrained(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	interval := m.pollInterval
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		drained, err := m.runDrained(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			m.setLastError(err)
		} else if drained {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) runDrained(ctx context.Context) (bool, error) {
	stats, err := m.store.StatsForRun(ctx, m.runID)
	if err != nil {
		return false, err
	}
	for status, count := range stats {
		if status == queue.StatusCompleted || status == queue.StatusFailed {
			continue
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (m *Manager) runWorker(ctx context.Context, worker *workerState) {
	defer m.wg.Done()
	logger := worker.logger
	if logger == nil {
		logger = m.logger
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if worker.runReclaimer {
			if err := m.heartbeat.ReclaimStaleWorks(ctx, logger, m.processingStatuses); err != nil {
				logger.Warn("reclaim stale processing failed; stuck works may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check ledger database access"),
				)
			}
		}

		item, err := m.nextWork(ctx)
		if err != nil {
			m.handleNextWorkError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.processWork(ctx, worker, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) nextWork(ctx context.Context) (*queue.Item, error) {
	if len(m.statusOrder) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, m.runID, m.statusOrder...)
}

func (m *Manager) handleNextWorkError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to fetch next work",
		logging.Error(err),
		logging.String(logging.FieldEventType, "ledger_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check ledger database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	interval := m.pollInterval
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(interval):
	}
}
