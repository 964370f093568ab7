package workflow

import (
	"log/slog"

	"fortuna/internal/queue"
	"fortuna/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Segmenter stage.Handler
	Scorer    stage.Handler
	Analyzer  stage.Handler
	Exporter  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type workerState struct {
	label        string
	logger       *slog.Logger
	runReclaimer bool
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	stg, ok := m.stageByStart[status]
	return stg, ok
}
