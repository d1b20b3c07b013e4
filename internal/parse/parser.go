// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package parse converts raw catalog payloads into canonical events. One
// parser exists per payload dialect: USGS GeoJSON, EMSC GeoJSON, and FDSN
// pipe-delimited text.
//
// Parsers never fail on individual records: a malformed feature or line is
// skipped silently (catalog garbage), and semantic problems are left to the
// validator. Only an unparseable envelope returns an error, which the
// pipeline records as a parse-level dead letter keyed by source alone.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/sources"
)

// Parser converts one raw response body into canonical events.
type Parser interface {
	// Parse returns the events found in raw. Individual bad records are
	// skipped; a non-nil error means the whole payload was unusable.
	Parse(raw string, fetchedAt time.Time) ([]models.CanonicalEvent, error)
}

// ForSource returns the parser bound to a source's format tag.
func ForSource(cfg sources.SourceConfig) (Parser, error) {
	switch cfg.Format {
	case sources.FormatGeoJSONUSGS:
		return NewUSGSGeoJSON(cfg.Name), nil
	case sources.FormatGeoJSONEMSC:
		return NewEMSCGeoJSON(cfg.Name), nil
	case sources.FormatFDSNText:
		return NewFDSNText(cfg.Name), nil
	default:
		return nil, fmt.Errorf("no parser registered for format %q (source %q)", cfg.Format, cfg.Name)
	}
}

// BuildRegistry maps every enabled source to its parser. Returns an error if
// any enabled source carries an unknown format tag, which is checked once at
// startup.
func BuildRegistry(reg *sources.Registry) (map[string]Parser, error) {
	parsers := make(map[string]Parser)
	for _, cfg := range reg.Enabled() {
		p, err := ForSource(cfg)
		if err != nil {
			return nil, err
		}
		parsers[cfg.Name] = p
	}
	return parsers, nil
}

// extractRegion returns the last comma-separated token of a place string,
// or the place itself when it has no comma ("Central California").
func extractRegion(place *string) *string {
	if place == nil || *place == "" {
		return nil
	}
	parts := strings.Split(*place, ", ")
	region := parts[len(parts)-1]
	return &region
}

// normalizeStatus maps a catalog status token onto the allowed set,
// defaulting to automatic.
func normalizeStatus(raw string) string {
	switch strings.ToLower(raw) {
	case models.StatusReviewed:
		return models.StatusReviewed
	case models.StatusDeleted:
		return models.StatusDeleted
	default:
		return models.StatusAutomatic
	}
}

// parseFlexibleTime accepts the timestamp shapes catalogs actually emit:
// epoch milliseconds (number) or ISO 8601 (string, 0-9 fractional digits,
// optional Z or offset suffix). Naive timestamps are taken as UTC.
func parseFlexibleTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case string:
		return parseISOTime(t)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// parseISOTime parses an ISO 8601 timestamp, normalizing fractional seconds
// to exactly 6 digits first. FDSN services emit anywhere between 0 and 9.
func parseISOTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	base, frac, zone := splitISOTime(s)
	frac = normalizeFraction(frac)

	composed := base + "." + frac
	if zone == "" {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05.000000", composed, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		return ts, nil
	}

	ts, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", composed+zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

// splitISOTime separates "2024-01-15T12:00:00.123Z" into date-time base,
// fractional digits, and zone suffix ("Z", "+02:00", or "").
func splitISOTime(s string) (base, frac, zone string) {
	rest := s

	// Zone suffix starts at Z, or at +/- after the time portion. The date
	// itself contains '-' characters, so only look past the 'T'.
	tIdx := strings.IndexByte(rest, 'T')
	searchFrom := tIdx + 1
	if tIdx < 0 {
		searchFrom = 0
	}
	for i := searchFrom; i < len(rest); i++ {
		c := rest[i]
		if c == 'Z' || c == '+' || (c == '-' && i > searchFrom) {
			zone = rest[i:]
			rest = rest[:i]
			break
		}
	}
	if zone == "Z" {
		zone = "+00:00"
	}

	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		base = rest[:dot]
		frac = rest[dot+1:]
	} else {
		base = rest
	}
	return base, frac, zone
}

// normalizeFraction pads or truncates fractional-second digits to exactly 6.
func normalizeFraction(frac string) string {
	if len(frac) >= 6 {
		return frac[:6]
	}
	return frac + strings.Repeat("0", 6-len(frac))
}

// floatPtr converts a loosely typed JSON value to *float64, returning nil
// for anything non-numeric.
func floatPtr(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}

// intPtr converts a loosely typed JSON value to *int.
func intPtr(v interface{}) *int {
	switch t := v.(type) {
	case float64:
		i := int(t)
		return &i
	case string:
		if i, err := strconv.Atoi(t); err == nil {
			return &i
		}
	}
	return nil
}

// stringPtr returns a pointer to a non-empty string value, else nil.
func stringPtr(v interface{}) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}
