// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package parse

import (
	"testing"
	"time"

	"github.com/tomtom215/quakewatch/internal/models"
)

const emscPayload = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "20240115_0000123",
      "properties": {
        "unid": "20240115_0000123",
        "time": "2024-01-15T12:00:10.0Z",
        "lastupdate": "2024-01-15T12:20:00.0Z",
        "mag": 5.1,
        "magtype": "mb",
        "flynn_region": "CENTRAL CALIFORNIA",
        "auth": "EMSC",
        "status": "automatic"
      },
      "geometry": {"type": "Point", "coordinates": [-120.02, 35.05, 11.0]}
    }
  ]
}`

func TestEMSCParse(t *testing.T) {
	events, err := NewEMSCGeoJSON("emsc").Parse(emscPayload, fetchedAt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.EventUID != "emsc:20240115_0000123" {
		t.Errorf("event_uid = %q", ev.EventUID)
	}
	if !ev.OriginTime.Equal(time.Date(2024, 1, 15, 12, 0, 10, 0, time.UTC)) {
		t.Errorf("origin time = %v", ev.OriginTime)
	}
	if ev.MagnitudeValue != 5.1 || ev.MagnitudeType != "mb" {
		t.Errorf("magnitude = %v %q", ev.MagnitudeValue, ev.MagnitudeType)
	}
	if ev.Place == nil || *ev.Place != "CENTRAL CALIFORNIA" {
		t.Errorf("place = %v", ev.Place)
	}
	if ev.Region == nil || *ev.Region != "CENTRAL CALIFORNIA" {
		t.Errorf("region = %v", ev.Region)
	}
	if ev.Author == nil || *ev.Author != "EMSC" {
		t.Errorf("author = %v", ev.Author)
	}
	if ev.UpdatedAt == nil || !ev.UpdatedAt.Equal(time.Date(2024, 1, 15, 12, 20, 0, 0, time.UTC)) {
		t.Errorf("updated_at = %v", ev.UpdatedAt)
	}
}

func TestEMSCParseEpochMillisTime(t *testing.T) {
	payload := `{"features":[{"properties":{"unid":"e2","time":1705312800000,"mag":4.5,"updated":1705313100000},
		"geometry":{"coordinates":[25.0, 38.0, 7.0]}}]}`
	events, err := NewEMSCGeoJSON("emsc").Parse(payload, fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if !ev.OriginTime.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("origin time = %v", ev.OriginTime)
	}
	if ev.UpdatedAt == nil || !ev.UpdatedAt.Equal(time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC)) {
		t.Errorf("updated_at = %v", ev.UpdatedAt)
	}
}

func TestEMSCParseIDFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantID  string
	}{
		{
			"source_id fallback",
			`{"features":[{"properties":{"source_id":"sid9","time":"2024-01-15T12:00:00Z"},"geometry":{"coordinates":[1,2,3]}}]}`,
			"sid9",
		},
		{
			"feature id fallback",
			`{"features":[{"id":"fid7","properties":{"time":"2024-01-15T12:00:00Z"},"geometry":{"coordinates":[1,2,3]}}]}`,
			"fid7",
		},
		{
			"numeric source_id",
			`{"features":[{"properties":{"source_id":123456,"time":"2024-01-15T12:00:00Z"},"geometry":{"coordinates":[1,2,3]}}]}`,
			"123456",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := NewEMSCGeoJSON("emsc").Parse(tt.payload, fetchedAt)
			if err != nil {
				t.Fatal(err)
			}
			if len(events) != 1 || events[0].SourceEventID != tt.wantID {
				t.Errorf("got %+v, want id %q", events, tt.wantID)
			}
		})
	}
}

func TestEMSCParseUnknownStatusBecomesAutomatic(t *testing.T) {
	payload := `{"features":[{"properties":{"unid":"s1","time":"2024-01-15T12:00:00Z","status":"manual"},
		"geometry":{"coordinates":[1,2,3]}}]}`
	events, err := NewEMSCGeoJSON("emsc").Parse(payload, fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	if events[0].Status != models.StatusAutomatic {
		t.Errorf("status = %q, want automatic", events[0].Status)
	}
}

func TestEMSCParseSkipsRecordsWithoutID(t *testing.T) {
	payload := `{"features":[
		{"properties":{"time":"2024-01-15T12:00:00Z"},"geometry":{"coordinates":[1,2,3]}},
		{"properties":{"unid":"keep","time":"2024-01-15T12:00:00Z"},"geometry":{"coordinates":[1,2,3]}}
	]}`
	events, err := NewEMSCGeoJSON("emsc").Parse(payload, fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].SourceEventID != "keep" {
		t.Errorf("expected only 'keep', got %+v", events)
	}
}

func TestEMSCParseEnvelopeFailure(t *testing.T) {
	if _, err := NewEMSCGeoJSON("emsc").Parse("not json at all", fetchedAt); err == nil {
		t.Error("expected envelope error")
	}
}
