package workflow

import "fortuna/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Stages chain in pipeline order; when a handler is absent the next stage
// starts from the preceding done status, which lets tests exercise partial
// pipelines.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := make([]pipelineStage, 0, 4)
	start := queue.StatusPending

	if set.Segmenter != nil {
		stages = append(stages, pipelineStage{
			name:             "segmenter",
			handler:          set.Segmenter,
			startStatus:      start,
			processingStatus: queue.StatusSegmenting,
			doneStatus:       queue.StatusSegmented,
		})
		start = queue.StatusSegmented
	}
	if set.Scorer != nil {
		stages = append(stages, pipelineStage{
			name:             "scorer",
			handler:          set.Scorer,
			startStatus:      start,
			processingStatus: queue.StatusScoring,
			doneStatus:       queue.StatusScored,
		})
		start = queue.StatusScored
	}
	if set.Analyzer != nil {
		stages = append(stages, pipelineStage{
			name:             "analyzer",
			handler:          set.Analyzer,
			startStatus:      start,
			processingStatus: queue.StatusAnalyzing,
			doneStatus:       queue.StatusAnalyzed,
		})
		start = queue.StatusAnalyzed
	}
	if set.Exporter != nil {
		stages = append(stages, pipelineStage{
			name:             "exporter",
			handler:          set.Exporter,
			startStatus:      start,
			processingStatus: queue.StatusExporting,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	processing := make([]queue.Status, 0, len(stages))
	seenProcessing := make(map[queue.Status]struct{}, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.statusOrder = statusOrder
	m.stageByStart = stageByStart
	m.processingStatuses = processing
	m.mu.Unlock()
}
