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

// UpsertUnifiedEvents MERGE-upserts the cycle's unified rows in one
// transaction. Existing rows keep their created_at; every touched row gets
// the new updated_at. Re-running the same cycle changes nothing but
// updated_at.
func (db *DB) UpsertUnifiedEvents(ctx context.Context, events []models.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unified upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO unified_events (
		unified_event_id, origin_time_utc, latitude, longitude, depth_km,
		magnitude_value, magnitude_type, place, region, status,
		num_sources, preferred_source, source_event_uids,
		magnitude_std, location_spread_km, source_agreement_score,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (unified_event_id) DO UPDATE SET
		origin_time_utc = excluded.origin_time_utc,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		depth_km = excluded.depth_km,
		magnitude_value = excluded.magnitude_value,
		magnitude_type = excluded.magnitude_type,
		place = excluded.place,
		region = excluded.region,
		status = excluded.status,
		num_sources = excluded.num_sources,
		preferred_source = excluded.preferred_source,
		source_event_uids = excluded.source_event_uids,
		magnitude_std = excluded.magnitude_std,
		location_spread_km = excluded.location_spread_km,
		source_agreement_score = excluded.source_agreement_score,
		updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare unified upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		uids, err := json.Marshal(ev.SourceEventUIDs)
		if err != nil {
			return fmt.Errorf("encode source_event_uids: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			ev.UnifiedEventID, ev.OriginTime.UTC(), ev.Latitude, ev.Longitude, ev.DepthKm,
			ev.MagnitudeValue, ev.MagnitudeType, ev.Place, ev.Region, ev.Status,
			ev.NumSources, ev.PreferredSource, string(uids),
			ev.MagnitudeStd, ev.LocationSpreadKm, ev.SourceAgreementScore,
			ev.CreatedAt.UTC(), ev.UpdatedAt.UTC(),
		); err != nil {
			metrics.ObserveDBQuery("upsert", "unified_events", start, err)
			return fmt.Errorf("upsert unified event %s: %w", ev.UnifiedEventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("upsert", "unified_events", start, err)
		return fmt.Errorf("commit unified upsert: %w", err)
	}
	metrics.ObserveDBQuery("upsert", "unified_events", start, nil)
	metrics.UnifiedEventsUpserted.Add(float64(len(events)))
	return nil
}

// GetUnifiedEvent loads one unified row by id.
func (db *DB) GetUnifiedEvent(ctx context.Context, unifiedEventID string) (*models.UnifiedEvent, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `SELECT
		unified_event_id, origin_time_utc, latitude, longitude, depth_km,
		magnitude_value, magnitude_type, place, region, status,
		num_sources, preferred_source, source_event_uids,
		magnitude_std, location_spread_km, source_agreement_score,
		created_at, updated_at
	FROM unified_events WHERE unified_event_id = ?`, unifiedEventID)

	var ev models.UnifiedEvent
	var place, region sql.NullString
	var uids string
	err := row.Scan(
		&ev.UnifiedEventID, &ev.OriginTime, &ev.Latitude, &ev.Longitude, &ev.DepthKm,
		&ev.MagnitudeValue, &ev.MagnitudeType, &place, &region, &ev.Status,
		&ev.NumSources, &ev.PreferredSource, &uids,
		&ev.MagnitudeStd, &ev.LocationSpreadKm, &ev.SourceAgreementScore,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	metrics.ObserveDBQuery("select", "unified_events", start, err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select unified event: %w", err)
	}

	ev.OriginTime = ev.OriginTime.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	ev.Place = nullString(place)
	ev.Region = nullString(region)
	if err := json.Unmarshal([]byte(uids), &ev.SourceEventUIDs); err != nil {
		return nil, fmt.Errorf("decode source_event_uids: %w", err)
	}
	return &ev, nil
}

// CountUnifiedEvents returns the unified table cardinality.
func (db *DB) CountUnifiedEvents(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM unified_events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unified events: %w", err)
	}
	return n, nil
}
