// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
)

// InsertRunLog records one pipeline invocation. The caller treats failures
// here as non-fatal: a cycle whose data landed must not be reported failed
// because its bookkeeping row did not.
func (db *DB) InsertRunLog(ctx context.Context, run models.RunLog) error {
	start := time.Now()
	sourcesJSON, err := json.Marshal(run.SourcesFetched)
	if err != nil {
		return fmt.Errorf("encode sources_fetched: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO pipeline_runs (
		run_id, started_at, finished_at, status, sources_fetched,
		raw_events_count, unified_events_count, dead_letter_count,
		duration_seconds, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, string(sourcesJSON),
		run.RawCount, run.UnifiedCount, run.DeadLetterCount,
		run.DurationSeconds, run.ErrorMessage,
	)
	metrics.ObserveDBQuery("insert", "pipeline_runs", start, err)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent run logs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]models.RunLog, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT
		run_id, started_at, finished_at, status, sources_fetched,
		raw_events_count, unified_events_count, dead_letter_count,
		duration_seconds, error_message
	FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	metrics.ObserveDBQuery("select", "pipeline_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("select run logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RunLog
	for rows.Next() {
		var run models.RunLog
		var sourcesJSON string
		var errMsg sql.NullString
		if err := rows.Scan(
			&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Status, &sourcesJSON,
			&run.RawCount, &run.UnifiedCount, &run.DeadLetterCount,
			&run.DurationSeconds, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		run.ErrorMessage = nullString(errMsg)
		if err := json.Unmarshal([]byte(sourcesJSON), &run.SourcesFetched); err != nil {
			return nil, fmt.Errorf("decode sources_fetched: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountDeadLetters returns the dead-letter table cardinality.
func (db *DB) CountDeadLetters(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM dead_letter_events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// DeadLetters returns dead-letter records for a source, newest first.
func (db *DB) DeadLetters(ctx context.Context, source string, limit int) ([]models.DeadLetterRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		source, source_event_id, raw_payload, error_messages, created_at
	FROM dead_letter_events WHERE source = ? ORDER BY created_at DESC LIMIT ?`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("select dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.DeadLetterRecord
	for rows.Next() {
		var rec models.DeadLetterRecord
		var sourceEventID sql.NullString
		var messages string
		if err := rows.Scan(&rec.Source, &sourceEventID, &rec.RawPayload, &messages, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		rec.SourceEventID = nullString(sourceEventID)
		rec.CreatedAt = rec.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(messages), &rec.ErrorMessages); err != nil {
			return nil, fmt.Errorf("decode error_messages: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
