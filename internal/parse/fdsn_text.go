// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/quakewatch/internal/geo"
	"github.com/tomtom215/quakewatch/internal/models"
)

// FDSN text columns (pipe-delimited):
// EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|
// ContributorID|MagType|Magnitude|MagAuthor|EventLocationName
const (
	colEventID  = 0
	colTime     = 1
	colLat      = 2
	colLon      = 3
	colDepth    = 4
	colAuthor   = 5
	colMagType  = 9
	colMag      = 10
	colLocation = 12
)

// FDSNText parses the FDSN pipe-delimited text format. Reusable for any
// FDSN-compliant service that supports format=text (GFZ GEOFON, ISC,
// GeoNet NZ, ...); the configured source name prefixes event uids.
type FDSNText struct {
	source string
}

// NewFDSNText returns a text parser bound to a source name.
func NewFDSNText(source string) *FDSNText {
	return &FDSNText{source: source}
}

// Parse implements Parser. An empty body (the 204 substitute) yields zero
// events; the text envelope itself cannot fail, so per-line problems are
// the only skip path.
func (p *FDSNText) Parse(raw string, fetchedAt time.Time) ([]models.CanonicalEvent, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	var events []models.CanonicalEvent

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "EventID") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ev, ok := p.parseLine(line, fetchedAt)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *FDSNText) parseLine(line string, fetchedAt time.Time) (models.CanonicalEvent, bool) {
	cols := strings.Split(line, "|")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if len(cols) <= colDepth || cols[colEventID] == "" {
		return models.CanonicalEvent{}, false
	}

	originTime, err := parseISOTime(cols[colTime])
	if err != nil {
		return models.CanonicalEvent{}, false
	}

	latitude, err := strconv.ParseFloat(cols[colLat], 64)
	if err != nil {
		return models.CanonicalEvent{}, false
	}
	longitude, err := strconv.ParseFloat(cols[colLon], 64)
	if err != nil {
		return models.CanonicalEvent{}, false
	}

	var depthKm float64
	if cols[colDepth] != "" {
		if depthKm, err = strconv.ParseFloat(cols[colDepth], 64); err != nil {
			return models.CanonicalEvent{}, false
		}
	}

	magType := "ml"
	if len(cols) > colMagType && cols[colMagType] != "" {
		magType = strings.ToLower(cols[colMagType])
	}
	var magValue float64
	if len(cols) > colMag && cols[colMag] != "" {
		if magValue, err = strconv.ParseFloat(cols[colMag], 64); err != nil {
			return models.CanonicalEvent{}, false
		}
	}

	var author *string
	if len(cols) > colAuthor && cols[colAuthor] != "" {
		author = &cols[colAuthor]
	}
	var place *string
	if len(cols) > colLocation && cols[colLocation] != "" {
		place = &cols[colLocation]
	}

	return models.CanonicalEvent{
		EventUID:       models.MakeEventUID(p.source, cols[colEventID]),
		Source:         p.source,
		SourceEventID:  cols[colEventID],
		OriginTime:     originTime,
		Latitude:       latitude,
		Longitude:      geo.NormalizeLongitude(longitude),
		DepthKm:        depthKm,
		MagnitudeValue: magValue,
		MagnitudeType:  magType,
		Place:          place,
		Region:         place,
		Status:         models.StatusAutomatic,
		Author:         author,
		FetchedAt:      fetchedAt,
		RawPayload:     line,
	}, true
}
