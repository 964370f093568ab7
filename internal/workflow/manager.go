package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fortuna/internal/config"
	"fortuna/internal/notifications"
	"fortuna/internal/queue"
)

// Manager drives the works of a single run through the registered stage
// handlers using a pool of concurrent workers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	runID        string
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages             []pipelineStage
	statusOrder        []queue.Status
	stageByStart       map[queue.Status]pipelineStage
	processingStatuses []queue.Status

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	runActive bool
	runStart  time.Time
}

// NewManager constructs a workflow manager scoped to the given run.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, runID string) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, runID, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, runID string, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		runID:        runID,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}
