// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/geo"
	"github.com/tomtom215/quakewatch/internal/models"
)

// EMSCGeoJSON parses the EMSC/SeismicPortal GeoJSON feed. The envelope
// matches USGS but property names differ (unid, magtype, flynn_region,
// lastupdate) and timestamps may arrive as either ISO strings or epoch
// milliseconds, so properties are decoded loosely.
type EMSCGeoJSON struct {
	source string
}

// NewEMSCGeoJSON returns a parser that stamps events with the given source
// name (normally "emsc").
func NewEMSCGeoJSON(source string) *EMSCGeoJSON {
	return &EMSCGeoJSON{source: source}
}

type emscFeature struct {
	ID         interface{}            `json:"id"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type emscFeatureCollection struct {
	Features []emscFeature `json:"features"`
}

// Parse implements Parser.
func (p *EMSCGeoJSON) Parse(raw string, fetchedAt time.Time) ([]models.CanonicalEvent, error) {
	var collection emscFeatureCollection
	if err := json.Unmarshal([]byte(raw), &collection); err != nil {
		return nil, fmt.Errorf("emsc geojson envelope: %w", err)
	}

	events := make([]models.CanonicalEvent, 0, len(collection.Features))
	for i := range collection.Features {
		ev, ok := p.parseFeature(&collection.Features[i], fetchedAt)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *EMSCGeoJSON) parseFeature(f *emscFeature, fetchedAt time.Time) (models.CanonicalEvent, bool) {
	props := f.Properties
	if props == nil || len(f.Geometry.Coordinates) < 3 {
		return models.CanonicalEvent{}, false
	}

	sourceEventID := firstString(props["unid"], props["source_id"], f.ID)
	if sourceEventID == "" {
		return models.CanonicalEvent{}, false
	}

	originTime, err := parseFlexibleTime(props["time"])
	if err != nil {
		return models.CanonicalEvent{}, false
	}

	var mag float64
	if m := floatPtr(props["mag"]); m != nil {
		mag = *m
	}
	magType := "ml"
	if mt := firstString(props["magtype"], props["magType"]); mt != "" {
		magType = strings.ToLower(mt)
	}

	flynnRegion := stringPtr(props["flynn_region"])
	place := flynnRegion
	if place == nil {
		place = stringPtr(props["place"])
	}

	var updatedAt *time.Time
	if rawUpdated, ok := firstNonNil(props["lastupdate"], props["updated"]); ok {
		if t, err := parseFlexibleTime(rawUpdated); err == nil {
			updatedAt = &t
		}
	}

	status := models.StatusAutomatic
	if s, ok := props["status"].(string); ok {
		status = normalizeStatus(s)
	}

	author := stringPtr(props["auth"])
	if author == nil {
		author = stringPtr(props["net"])
	}

	// Per-record provenance excerpt; the raw store truncates it further.
	rawFeature, _ := json.Marshal(f)

	return models.CanonicalEvent{
		EventUID:       models.MakeEventUID(p.source, sourceEventID),
		Source:         p.source,
		SourceEventID:  sourceEventID,
		OriginTime:     originTime,
		Latitude:       f.Geometry.Coordinates[1],
		Longitude:      geo.NormalizeLongitude(f.Geometry.Coordinates[0]),
		DepthKm:        f.Geometry.Coordinates[2],
		MagnitudeValue: mag,
		MagnitudeType:  magType,
		Place:          place,
		Region:         flynnRegion,
		LatErrorKm:     floatPtr(props["horizontalError"]),
		LonErrorKm:     floatPtr(props["horizontalError"]),
		DepthErrorKm:   floatPtr(props["depthError"]),
		MagError:       floatPtr(props["magError"]),
		TimeErrorSec:   floatPtr(props["timeError"]),
		Status:         status,
		NumPhases:      intPtr(props["nph"]),
		AzimuthalGap:   floatPtr(props["gap"]),
		Author:         author,
		URL:            stringPtr(props["url"]),
		UpdatedAt:      updatedAt,
		FetchedAt:      fetchedAt,
		RawPayload:     string(rawFeature),
	}, true
}

// firstString returns the first candidate that renders to a non-empty string.
// Numeric ids are formatted without an exponent.
func firstString(candidates ...interface{}) string {
	for _, c := range candidates {
		switch v := c.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// firstNonNil returns the first non-nil candidate.
func firstNonNil(candidates ...interface{}) (interface{}, bool) {
	for _, c := range candidates {
		if c != nil {
			return c, true
		}
	}
	return nil, false
}
