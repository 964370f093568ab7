package queue

import (
	"strings"
	"time"

	"fortuna/internal/textutil"
)

// Status represents the lifecycle of a work in the ledger.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSegmenting Status = "segmenting"
	StatusSegmented  Status = "segmented"
	StatusScoring    Status = "scoring"
	StatusScored     Status = "scored"
	StatusAnalyzing  Status = "analyzing"
	StatusAnalyzed   Status = "analyzed"
	StatusExporting  Status = "exporting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RunAbortedReason is the error message set when in-flight works are failed
// because the run was interrupted before they reached a terminal status.
const RunAbortedReason = "Run aborted"

var allStatuses = []Status{
	StatusPending,
	StatusSegmenting,
	StatusSegmented,
	StatusScoring,
	StatusScored,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusExporting,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusSegmenting: {},
	StatusScoring:    {},
	StatusAnalyzing:  {},
	StatusExporting:  {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusSegmenting, to: StatusPending},
	{from: StatusScoring, to: StatusSegmented},
	{from: StatusAnalyzing, to: StatusScored},
	{from: StatusExporting, to: StatusAnalyzed},
}

func processingRollbackTransitions() []statusTransition {
	return stageRollbackTransitions
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated ledger counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item represents a single work persisted in SQLite. A row carries the work
// through every stage: the segmenter fills SentencesJSON, the scorer fills
// ScoresJSON, the analyzer stages bundle files and records the final fortune,
// and the exporter publishes the bundles to the output directory.
type Item struct {
	ID              int64
	RunID           string
	WorkKey         string
	Title           string
	SourcePath      string
	Status          Status
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	SentenceCount   int
	SentencesJSON   string
	ScoresJSON      string
	OriginalFile    string
	CumulativeFile  string
	UltimateFortune *float64
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the work has finished, successfully or not.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// DisplayTitle returns the stored title, deriving one from the work key when
// ingestion did not record a title.
func (i Item) DisplayTitle() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return textutil.DisplayTitle(i.WorkKey)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0,
// and ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the work as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}
