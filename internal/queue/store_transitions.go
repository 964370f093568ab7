package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TransitionStatus atomically moves a work from one status to another.
// It reports false when the work was not in the expected status, which lets
// concurrent workers race for the same claim without double-processing.
func (s *Store) TransitionStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE works SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetStuckProcessing resets works in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE works
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?)`,
		StatusSegmenting, StatusPending,
		StatusScoring, StatusSegmented,
		StatusAnalyzing, StatusScored,
		StatusExporting, StatusAnalyzed,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusSegmenting,
		StatusScoring,
		StatusAnalyzing,
		StatusExporting,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck works: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight work.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE works SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns works stuck in processing back to the start
// of their current stage when heartbeats expire. When statuses are provided,
// only works in those processing states are considered.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	targets := statuses
	if len(targets) == 0 {
		for _, transition := range processingRollbackTransitions() {
			targets = append(targets, transition.from)
		}
	}

	now := time.Now().UTC()
	args := make([]any, 0, len(targets)+10)
	for _, transition := range processingRollbackTransitions() {
		args = append(args, transition.from, transition.to)
	}
	args = append(args, now.Format(time.RFC3339Nano))
	for _, status := range targets {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	query := `UPDATE works
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(targets)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale works: %w", err)
	}
	return res.RowsAffected()
}

// FailProcessing marks every in-flight work of a run as failed with the given
// reason. Used when a run is aborted so no work is left stranded mid-stage.
func (s *Store) FailProcessing(ctx context.Context, runID, reason string) (int64, error) {
	if strings.TrimSpace(reason) == "" {
		reason = RunAbortedReason
	}
	args := make([]any, 0, len(processingStatuses)+3)
	args = append(args, StatusFailed, reason, time.Now().UTC().Format(time.RFC3339Nano))
	statuses := make([]Status, 0, len(processingStatuses))
	for _, transition := range processingRollbackTransitions() {
		statuses = append(statuses, transition.from)
	}
	for _, status := range statuses {
		args = append(args, status)
	}
	query := `UPDATE works
        SET status = ?, error_message = ?, progress_stage = 'Failed', progress_percent = 0,
            progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	if strings.TrimSpace(runID) != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail processing works: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed works back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE works
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed works: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE works
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected works: %w", err)
	}
	return res.RowsAffected()
}
