// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
schema.go - Warehouse Schema Management

Tables:
  - raw_events: append-only store of every validated canonical observation;
    duplicates per event_uid are resolved at read time (latest fetched_at wins)
  - dead_letter_events: records that failed parse or validation, kept for
    forensics and excluded from analytics
  - unified_events: one row per physical earthquake, keyed by the
    deterministic unified_event_id and re-upserted every cycle
  - pipeline_runs: one row per ingestion cycle

List-valued columns (error_messages, source_event_uids, sources_fetched)
are stored as JSON text for portability across DuckDB versions.
*/

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS raw_events (
			event_uid        VARCHAR NOT NULL,
			source           VARCHAR NOT NULL,
			source_event_id  VARCHAR NOT NULL,
			origin_time_utc  TIMESTAMP NOT NULL,
			latitude         DOUBLE NOT NULL,
			longitude        DOUBLE NOT NULL,
			depth_km         DOUBLE NOT NULL,
			magnitude_value  DOUBLE NOT NULL,
			magnitude_type   VARCHAR NOT NULL,
			place            VARCHAR,
			region           VARCHAR,
			lat_error_km     DOUBLE,
			lon_error_km     DOUBLE,
			depth_error_km   DOUBLE,
			mag_error        DOUBLE,
			time_error_sec   DOUBLE,
			status           VARCHAR NOT NULL,
			num_phases       INTEGER,
			azimuthal_gap    DOUBLE,
			author           VARCHAR,
			url              VARCHAR,
			fetched_at       TIMESTAMP NOT NULL,
			updated_at       TIMESTAMP,
			raw_payload      VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS dead_letter_events (
			source           VARCHAR NOT NULL,
			source_event_id  VARCHAR,
			raw_payload      VARCHAR NOT NULL,
			error_messages   VARCHAR NOT NULL,
			created_at       TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS unified_events (
			unified_event_id       VARCHAR PRIMARY KEY,
			origin_time_utc        TIMESTAMP NOT NULL,
			latitude               DOUBLE NOT NULL,
			longitude              DOUBLE NOT NULL,
			depth_km               DOUBLE NOT NULL,
			magnitude_value        DOUBLE NOT NULL,
			magnitude_type         VARCHAR NOT NULL,
			place                  VARCHAR,
			region                 VARCHAR,
			status                 VARCHAR NOT NULL,
			num_sources            INTEGER NOT NULL,
			preferred_source       VARCHAR NOT NULL,
			source_event_uids      VARCHAR NOT NULL,
			magnitude_std          DOUBLE NOT NULL,
			location_spread_km     DOUBLE NOT NULL,
			source_agreement_score DOUBLE NOT NULL,
			created_at             TIMESTAMP NOT NULL,
			updated_at             TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id               VARCHAR NOT NULL,
			started_at           TIMESTAMP NOT NULL,
			finished_at          TIMESTAMP NOT NULL,
			status               VARCHAR NOT NULL,
			sources_fetched      VARCHAR NOT NULL,
			raw_events_count     INTEGER NOT NULL,
			unified_events_count INTEGER NOT NULL,
			dead_letter_count    INTEGER NOT NULL,
			duration_seconds     DOUBLE NOT NULL,
			error_message        VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_origin_time ON raw_events (origin_time_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_uid ON raw_events (event_uid)`,
		`CREATE INDEX IF NOT EXISTS idx_unified_events_origin_time ON unified_events (origin_time_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs (started_at)`,
	}

	for _, q := range queries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
