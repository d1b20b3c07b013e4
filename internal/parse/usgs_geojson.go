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

// USGSGeoJSON parses the USGS FDSN GeoJSON feed.
type USGSGeoJSON struct {
	source string
}

// NewUSGSGeoJSON returns a parser that stamps events with the given source
// name (normally "usgs").
func NewUSGSGeoJSON(source string) *USGSGeoJSON {
	return &USGSGeoJSON{source: source}
}

type usgsFeatureCollection struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string    `json:"id"`
	Properties usgsProps `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type usgsProps struct {
	Time            *int64   `json:"time"`
	Updated         *int64   `json:"updated"`
	Mag             *float64 `json:"mag"`
	MagType         *string  `json:"magType"`
	Place           *string  `json:"place"`
	Status          *string  `json:"status"`
	URL             *string  `json:"url"`
	Net             *string  `json:"net"`
	HorizontalError *float64 `json:"horizontalError"`
	DepthError      *float64 `json:"depthError"`
	MagError        *float64 `json:"magError"`
	TimeError       *float64 `json:"timeError"`
	Nph             *int     `json:"nph"`
	Gap             *float64 `json:"gap"`
}

// Parse implements Parser.
func (p *USGSGeoJSON) Parse(raw string, fetchedAt time.Time) ([]models.CanonicalEvent, error) {
	var collection usgsFeatureCollection
	if err := json.Unmarshal([]byte(raw), &collection); err != nil {
		return nil, fmt.Errorf("usgs geojson envelope: %w", err)
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

// parseFeature converts one feature; ok=false means the record lacked the
// required fields and is dropped.
func (p *USGSGeoJSON) parseFeature(f *usgsFeature, fetchedAt time.Time) (models.CanonicalEvent, bool) {
	props := &f.Properties
	if f.ID == "" || props.Time == nil || len(f.Geometry.Coordinates) < 3 {
		return models.CanonicalEvent{}, false
	}

	magType := "ml"
	if props.MagType != nil && *props.MagType != "" {
		magType = strings.ToLower(*props.MagType)
	}
	var mag float64
	if props.Mag != nil {
		mag = *props.Mag
	}

	status := models.StatusAutomatic
	if props.Status != nil {
		status = normalizeStatus(*props.Status)
	}

	var updatedAt *time.Time
	if props.Updated != nil {
		t := time.UnixMilli(*props.Updated).UTC()
		updatedAt = &t
	}

	// Per-record provenance excerpt; the raw store truncates it further.
	rawFeature, _ := json.Marshal(f)

	return models.CanonicalEvent{
		EventUID:       models.MakeEventUID(p.source, f.ID),
		Source:         p.source,
		SourceEventID:  f.ID,
		OriginTime:     time.UnixMilli(*props.Time).UTC(),
		Latitude:       f.Geometry.Coordinates[1],
		Longitude:      geo.NormalizeLongitude(f.Geometry.Coordinates[0]),
		DepthKm:        f.Geometry.Coordinates[2],
		MagnitudeValue: mag,
		MagnitudeType:  magType,
		Place:          props.Place,
		Region:         extractRegion(props.Place),
		LatErrorKm:     props.HorizontalError,
		LonErrorKm:     props.HorizontalError,
		DepthErrorKm:   props.DepthError,
		MagError:       props.MagError,
		TimeErrorSec:   props.TimeError,
		Status:         status,
		NumPhases:      props.Nph,
		AzimuthalGap:   props.Gap,
		Author:         props.Net,
		URL:            props.URL,
		UpdatedAt:      updatedAt,
		FetchedAt:      fetchedAt,
		RawPayload:     string(rawFeature),
	}, true
}
