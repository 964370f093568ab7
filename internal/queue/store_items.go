package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewWork inserts a pending work for a source text awaiting segmentation.
func (s *Store) NewWork(ctx context.Context, runID, workKey, title, sourcePath string) (*Item, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	workKey = strings.TrimSpace(workKey)
	if workKey == "" {
		return nil, errors.New("work key is required")
	}
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("source path is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO works (
            run_id, work_key, title, source_path, status, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		workKey,
		nullableString(title),
		sourcePath,
		StatusPending,
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a ledger work by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM works WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work: %w", err)
	}
	return item, nil
}

// FindByWorkKey returns the work matching a key within a run.
func (s *Store) FindByWorkKey(ctx context.Context, runID, workKey string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM works WHERE run_id = ? AND work_key = ? ORDER BY id LIMIT 1`,
		runID,
		workKey,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by work key: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing ledger work.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE works
         SET work_key = ?, title = ?, source_path = ?, status = ?, error_message = ?,
             updated_at = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             sentence_count = ?, sentences_json = ?, scores_json = ?,
             original_file = ?, cumulative_file = ?, ultimate_fortune = ?, last_heartbeat = ?
         WHERE id = ?`,
		item.WorkKey,
		nullableString(item.Title),
		item.SourcePath,
		item.Status,
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.SentenceCount,
		nullableString(item.SentencesJSON),
		nullableString(item.ScoresJSON),
		nullableString(item.OriginalFile),
		nullableString(item.CumulativeFile),
		nullableFloat(item.UltimateFortune),
		nullableTime(item.LastHeartbeat),
		item.ID,
	); err != nil {
		return fmt.Errorf("update work: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields of a work, leaving the
// heartbeat and stage payloads untouched.
func (s *Store) UpdateProgress(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE works
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns ledger works filtered by status set (or all works when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	return s.list(ctx, "", statuses...)
}

// ListRun returns the works belonging to a run, optionally filtered by status.
func (s *Store) ListRun(ctx context.Context, runID string, statuses ...Status) ([]*Item, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("run id is required")
	}
	return s.list(ctx, runID, statuses...)
}

func (s *Store) list(ctx context.Context, runID string, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM works`
	var (
		clauses []string
		args    []any
	)
	if runID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, runID)
	}
	if len(statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(statuses))+")")
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest work in a run matching any of the
// provided statuses. An empty run id matches works from any run.
func (s *Store) NextForStatuses(ctx context.Context, runID string, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+1)
	query := `SELECT ` + itemColumns + ` FROM works WHERE status IN (` + placeholders + `)`
	for _, status := range statuses {
		args = append(args, status)
	}
	if strings.TrimSpace(runID) != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// LatestRunID returns the run id of the most recently enqueued work, or an
// empty string when the ledger is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id FROM works ORDER BY id DESC LIMIT 1`)
	var runID string
	if err := row.Scan(&runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest run id: %w", err)
	}
	return runID, nil
}

// Remove deletes a work by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM works WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete work: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed works from the ledger.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM works WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all works from the ledger.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM works`)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed works from the ledger.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM works WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
