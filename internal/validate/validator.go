// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package validate applies the fixed range and format checks that gate entry
// into the raw store. Any violation diverts the record to the dead-letter
// table; the returned messages name the offending field so dead letters stay
// diagnosable.
package validate

import (
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/models"
)

// Validation bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinDepthKm   = -10.0
	MaxDepthKm   = 800.0
	MinMagnitude = -2.0
	MaxMagnitude = 10.0

	// FutureTolerance absorbs clock skew between catalogs and this host.
	FutureTolerance = time.Hour
)

// Validate checks a canonical event against the pipeline's range and format
// rules. It returns one message per violated rule; an empty slice means the
// event is valid. Pure function: the event is never modified.
func Validate(e models.CanonicalEvent) []string {
	return validateAt(e, time.Now().UTC())
}

// validateAt is the clock-injected core, used directly by tests.
func validateAt(e models.CanonicalEvent, now time.Time) []string {
	var errs []string

	if e.Latitude < MinLatitude || e.Latitude > MaxLatitude {
		errs = append(errs, fmt.Sprintf("latitude %g out of range [-90, 90]", e.Latitude))
	}
	if e.Longitude < MinLongitude || e.Longitude > MaxLongitude {
		errs = append(errs, fmt.Sprintf("longitude %g out of range [-180, 180]", e.Longitude))
	}
	if e.DepthKm < MinDepthKm {
		errs = append(errs, fmt.Sprintf("depth_km %g unreasonably negative", e.DepthKm))
	}
	if e.DepthKm > MaxDepthKm {
		errs = append(errs, fmt.Sprintf("depth_km %g exceeds 800 km", e.DepthKm))
	}
	if e.MagnitudeValue < MinMagnitude || e.MagnitudeValue > MaxMagnitude {
		errs = append(errs, fmt.Sprintf("magnitude_value %g out of range [-2, 10]", e.MagnitudeValue))
	}

	if e.OriginTime.IsZero() {
		errs = append(errs, "origin_time_utc is zero")
	} else if e.OriginTime.After(now.Add(FutureTolerance)) {
		errs = append(errs, fmt.Sprintf("origin_time_utc %s is in the future", e.OriginTime.Format(time.RFC3339)))
	}

	switch e.Status {
	case models.StatusAutomatic, models.StatusReviewed, models.StatusDeleted:
	default:
		errs = append(errs, fmt.Sprintf("status %q not in (automatic, reviewed, deleted)", e.Status))
	}

	if e.EventUID == "" {
		errs = append(errs, "event_uid is empty")
	}
	if e.Source == "" {
		errs = append(errs, "source is empty")
	}
	if e.SourceEventID == "" {
		errs = append(errs, "source_event_id is empty")
	}

	return errs
}
