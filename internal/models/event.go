// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package models defines the data model shared across the pipeline: the
// canonical per-catalog event, the deduplicated unified event, dead-letter
// records, and the per-invocation run log.
package models

import (
	"fmt"
	"time"
)

// Event status values. Catalogs report whether an origin has been reviewed
// by an analyst; anything else is normalized to automatic.
const (
	StatusAutomatic = "automatic"
	StatusReviewed  = "reviewed"
	StatusDeleted   = "deleted"
)

// MakeEventUID builds the globally unique identifier for one observation of
// one earthquake by one catalog: "{source}:{source_event_id}".
func MakeEventUID(source, sourceEventID string) string {
	return fmt.Sprintf("%s:%s", source, sourceEventID)
}

// CanonicalEvent is one normalized observation of one earthquake by one
// catalog. Events are immutable once created: the parser builds them, the
// validator inspects them, and the raw store owns them indefinitely.
type CanonicalEvent struct {
	EventUID      string `json:"event_uid"`
	Source        string `json:"source"`
	SourceEventID string `json:"source_event_id"`

	OriginTime time.Time `json:"origin_time_utc"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DepthKm    float64   `json:"depth_km"`

	MagnitudeValue float64 `json:"magnitude_value"`
	MagnitudeType  string  `json:"magnitude_type"`

	Place  *string `json:"place,omitempty"`
	Region *string `json:"region,omitempty"`

	// Uncertainty fields; catalogs report these sparsely.
	LatErrorKm   *float64 `json:"lat_error_km,omitempty"`
	LonErrorKm   *float64 `json:"lon_error_km,omitempty"`
	DepthErrorKm *float64 `json:"depth_error_km,omitempty"`
	MagError     *float64 `json:"mag_error,omitempty"`
	TimeErrorSec *float64 `json:"time_error_sec,omitempty"`

	Status       string   `json:"status"`
	NumPhases    *int     `json:"num_phases,omitempty"`
	AzimuthalGap *float64 `json:"azimuthal_gap,omitempty"`

	Author     *string    `json:"author,omitempty"`
	URL        *string    `json:"url,omitempty"`
	FetchedAt  time.Time  `json:"fetched_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	RawPayload string     `json:"raw_payload,omitempty"`
}

// DeadLetterRecord is a record that entered the pipeline but failed parse or
// validation. Retained for forensics, excluded from analytics. Terminal.
type DeadLetterRecord struct {
	Source        string    `json:"source"`
	SourceEventID *string   `json:"source_event_id,omitempty"`
	RawPayload    string    `json:"raw_payload"`
	ErrorMessages []string  `json:"error_messages"`
	CreatedAt     time.Time `json:"created_at"`
}

// UnifiedEvent is the deduplicated cross-catalog best estimate of a single
// physical earthquake. Keyed by UnifiedEventID; re-upserted every cycle and
// never deleted by the pipeline.
type UnifiedEvent struct {
	UnifiedEventID string `json:"unified_event_id"`

	OriginTime time.Time `json:"origin_time_utc"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DepthKm    float64   `json:"depth_km"`

	MagnitudeValue float64 `json:"magnitude_value"`
	MagnitudeType  string  `json:"magnitude_type"`

	Place  *string `json:"place,omitempty"`
	Region *string `json:"region,omitempty"`
	Status string  `json:"status"`

	NumSources      int      `json:"num_sources"`
	PreferredSource string   `json:"preferred_source"`
	SourceEventUIDs []string `json:"source_event_uids"`

	MagnitudeStd         float64 `json:"magnitude_std"`
	LocationSpreadKm     float64 `json:"location_spread_km"`
	SourceAgreementScore float64 `json:"source_agreement_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunLog records the outcome of one pipeline invocation.
type RunLog struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Status          string    `json:"status"` // "ok" or "failed"
	SourcesFetched  []string  `json:"sources_fetched"`
	RawCount        int       `json:"raw_events_count"`
	UnifiedCount    int       `json:"unified_events_count"`
	DeadLetterCount int       `json:"dead_letter_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
}

// Run log terminal states.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)
