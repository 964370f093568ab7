package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, run_id, work_key, title, source_path, status, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, sentence_count, sentences_json, scores_json, original_file, cumulative_file, ultimate_fortune, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		runID            string
		workKey          string
		title            sql.NullString
		sourcePath       sql.NullString
		statusStr        string
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		sentenceCount    sql.NullInt64
		sentencesJSON    sql.NullString
		scoresJSON       sql.NullString
		originalFile     sql.NullString
		cumulativeFile   sql.NullString
		ultimateFortune  sql.NullFloat64
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&workKey,
		&title,
		&sourcePath,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&sentenceCount,
		&sentencesJSON,
		&scoresJSON,
		&originalFile,
		&cumulativeFile,
		&ultimateFortune,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		RunID:           runID,
		WorkKey:         workKey,
		Title:           title.String,
		SourcePath:      sourcePath.String,
		Status:          Status(statusStr),
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		SentenceCount:   int(sentenceCount.Int64),
		SentencesJSON:   sentencesJSON.String,
		ScoresJSON:      scoresJSON.String,
		OriginalFile:    originalFile.String,
		CumulativeFile:  cumulativeFile.String,
	}
	if ultimateFortune.Valid {
		value := ultimateFortune.Float64
		item.UltimateFortune = &value
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
