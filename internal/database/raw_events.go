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

// AppendRawEvents appends validated canonical events to the raw store.
// Raw payloads are truncated to a bounded excerpt; the table is append-only
// so re-fetches of the same event simply add rows.
func (db *DB) AppendRawEvents(ctx context.Context, events []models.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin raw append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_events (
		event_uid, source, source_event_id, origin_time_utc,
		latitude, longitude, depth_km, magnitude_value, magnitude_type,
		place, region, lat_error_km, lon_error_km, depth_error_km,
		mag_error, time_error_sec, status, num_phases, azimuthal_gap,
		author, url, fetched_at, updated_at, raw_payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw append: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventUID, ev.Source, ev.SourceEventID, ev.OriginTime.UTC(),
			ev.Latitude, ev.Longitude, ev.DepthKm, ev.MagnitudeValue, ev.MagnitudeType,
			ev.Place, ev.Region, ev.LatErrorKm, ev.LonErrorKm, ev.DepthErrorKm,
			ev.MagError, ev.TimeErrorSec, ev.Status, ev.NumPhases, ev.AzimuthalGap,
			ev.Author, ev.URL, ev.FetchedAt.UTC(), utcPtr(ev.UpdatedAt), truncatePayload(ev.RawPayload),
		); err != nil {
			metrics.ObserveDBQuery("append", "raw_events", start, err)
			return fmt.Errorf("append raw event %s: %w", ev.EventUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("append", "raw_events", start, err)
		return fmt.Errorf("commit raw append: %w", err)
	}
	metrics.ObserveDBQuery("append", "raw_events", start, nil)

	db.windowCache.Bump()
	return nil
}

// AppendDeadLetters records failed records. Error message lists are stored
// as JSON text.
func (db *DB) AppendDeadLetters(ctx context.Context, records []models.DeadLetterRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dead-letter append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dead_letter_events (
		source, source_event_id, raw_payload, error_messages, created_at
	) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dead-letter append: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		messages, err := json.Marshal(rec.ErrorMessages)
		if err != nil {
			return fmt.Errorf("encode dead-letter messages: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Source, rec.SourceEventID, truncatePayload(rec.RawPayload),
			string(messages), rec.CreatedAt.UTC(),
		); err != nil {
			metrics.ObserveDBQuery("append", "dead_letter_events", start, err)
			return fmt.Errorf("append dead letter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("append", "dead_letter_events", start, err)
		return fmt.Errorf("commit dead-letter append: %w", err)
	}
	metrics.ObserveDBQuery("append", "dead_letter_events", start, nil)
	return nil
}

// RecentCanonicalEvents loads the deduplicated raw window: for each
// event_uid only the most recently fetched row survives. Results are
// ordered by origin time for the clusterer. A short-lived cache, bumped on
// every append, absorbs repeated reads between writes.
func (db *DB) RecentCanonicalEvents(ctx context.Context, since time.Time) ([]models.CanonicalEvent, error) {
	cacheKey := fmt.Sprintf("window:%d", since.Unix())
	if cached, ok := db.windowCache.Get(cacheKey); ok {
		metrics.WindowCacheHits.Inc()
		return cached.([]models.CanonicalEvent), nil
	}
	metrics.WindowCacheMisses.Inc()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT
		event_uid, source, source_event_id, origin_time_utc,
		latitude, longitude, depth_km, magnitude_value, magnitude_type,
		place, region, lat_error_km, lon_error_km, depth_error_km,
		mag_error, time_error_sec, status, num_phases, azimuthal_gap,
		author, url, fetched_at, updated_at
	FROM raw_events
	WHERE origin_time_utc >= ?
	QUALIFY ROW_NUMBER() OVER (PARTITION BY event_uid ORDER BY fetched_at DESC) = 1
	ORDER BY origin_time_utc, event_uid`, since.UTC())
	metrics.ObserveDBQuery("select", "raw_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("select raw window: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.CanonicalEvent
	for rows.Next() {
		ev, err := scanCanonicalEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw window: %w", err)
	}

	db.windowCache.Set(cacheKey, events)
	return events, nil
}

func scanCanonicalEvent(rows *sql.Rows) (models.CanonicalEvent, error) {
	var ev models.CanonicalEvent
	var place, region, author, url sql.NullString
	var latErr, lonErr, depthErr, magErr, timeErr, gap sql.NullFloat64
	var numPhases sql.NullInt32
	var updatedAt sql.NullTime

	err := rows.Scan(
		&ev.EventUID, &ev.Source, &ev.SourceEventID, &ev.OriginTime,
		&ev.Latitude, &ev.Longitude, &ev.DepthKm, &ev.MagnitudeValue, &ev.MagnitudeType,
		&place, &region, &latErr, &lonErr, &depthErr,
		&magErr, &timeErr, &ev.Status, &numPhases, &gap,
		&author, &url, &ev.FetchedAt, &updatedAt,
	)
	if err != nil {
		return ev, err
	}

	ev.OriginTime = ev.OriginTime.UTC()
	ev.FetchedAt = ev.FetchedAt.UTC()
	ev.Place = nullString(place)
	ev.Region = nullString(region)
	ev.LatErrorKm = nullFloat(latErr)
	ev.LonErrorKm = nullFloat(lonErr)
	ev.DepthErrorKm = nullFloat(depthErr)
	ev.MagError = nullFloat(magErr)
	ev.TimeErrorSec = nullFloat(timeErr)
	ev.AzimuthalGap = nullFloat(gap)
	ev.Author = nullString(author)
	ev.URL = nullString(url)
	if numPhases.Valid {
		n := int(numPhases.Int32)
		ev.NumPhases = &n
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		ev.UpdatedAt = &t
	}
	return ev, nil
}

func truncatePayload(payload string) string {
	if len(payload) > rawPayloadMaxLen {
		return payload[:rawPayloadMaxLen]
	}
	return payload
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
