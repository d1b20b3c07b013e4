// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }
func ptrI(v int) *int         { return &v }

func TestMakeEventUID(t *testing.T) {
	if got := MakeEventUID("usgs", "us7000test"); got != "usgs:us7000test" {
		t.Errorf("MakeEventUID = %q, want usgs:us7000test", got)
	}
}

func TestCanonicalEventJSONRoundTrip(t *testing.T) {
	origin := time.Date(2024, 1, 15, 12, 0, 0, 123456000, time.UTC)
	fetched := time.Date(2024, 1, 15, 12, 5, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 15, 12, 3, 0, 0, time.UTC)

	ev := CanonicalEvent{
		EventUID:       "usgs:us7000test",
		Source:         "usgs",
		SourceEventID:  "us7000test",
		OriginTime:     origin,
		Latitude:       35.8,
		Longitude:      -120.5,
		DepthKm:        12.3,
		MagnitudeValue: 5.2,
		MagnitudeType:  "mw",
		Place:          ptrS("25 km NE of Paso Robles, CA"),
		Region:         ptrS("CA"),
		LatErrorKm:     ptrF(1.1),
		LonErrorKm:     ptrF(1.1),
		DepthErrorKm:   ptrF(2.4),
		MagError:       ptrF(0.05),
		TimeErrorSec:   ptrF(0.4),
		Status:         StatusReviewed,
		NumPhases:      ptrI(42),
		AzimuthalGap:   ptrF(78.0),
		Author:         ptrS("us"),
		URL:            ptrS("https://earthquake.usgs.gov/earthquakes/eventpage/us7000test"),
		FetchedAt:      fetched,
		UpdatedAt:      &updated,
		RawPayload:     `{"id":"us7000test"}`,
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back CanonicalEvent
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !back.OriginTime.Equal(origin) {
		t.Errorf("origin time changed: %v != %v", back.OriginTime, origin)
	}
	if loc := back.OriginTime.UTC(); !loc.Equal(back.OriginTime) {
		t.Errorf("origin time lost UTC offset: %v", back.OriginTime)
	}
	if back.UpdatedAt == nil || !back.UpdatedAt.Equal(updated) {
		t.Errorf("updated_at changed: %v", back.UpdatedAt)
	}
	if back.EventUID != ev.EventUID || back.Source != ev.Source || back.SourceEventID != ev.SourceEventID {
		t.Errorf("identity fields changed: %+v", back)
	}
	if back.Latitude != ev.Latitude || back.Longitude != ev.Longitude || back.DepthKm != ev.DepthKm {
		t.Errorf("origin fields changed: %+v", back)
	}
	if back.MagnitudeValue != ev.MagnitudeValue || back.MagnitudeType != ev.MagnitudeType {
		t.Errorf("magnitude fields changed: %+v", back)
	}
	if *back.Place != *ev.Place || *back.Region != *ev.Region {
		t.Errorf("descriptive fields changed: %+v", back)
	}
	if *back.LatErrorKm != 1.1 || *back.MagError != 0.05 || *back.NumPhases != 42 {
		t.Errorf("uncertainty fields changed: %+v", back)
	}
	if back.Status != StatusReviewed || *back.Author != "us" {
		t.Errorf("quality fields changed: %+v", back)
	}
	if back.RawPayload != ev.RawPayload {
		t.Errorf("raw payload changed: %q", back.RawPayload)
	}
}

func TestCanonicalEventOptionalFieldsOmitted(t *testing.T) {
	ev := CanonicalEvent{
		EventUID:       "gfz:gfz2024abcd",
		Source:         "gfz",
		SourceEventID:  "gfz2024abcd",
		OriginTime:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Latitude:       35.0,
		Longitude:      -120.0,
		DepthKm:        10,
		MagnitudeValue: 5.0,
		MagnitudeType:  "ml",
		Status:         StatusAutomatic,
		FetchedAt:      time.Date(2024, 1, 15, 12, 1, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	for _, key := range []string{"place", "region", "mag_error", "num_phases", "updated_at", "url", "author"} {
		if _, present := m[key]; present {
			t.Errorf("optional field %q serialized despite being unset", key)
		}
	}
}

func TestUnifiedEventJSONRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 10, 0, 0, time.UTC)
	ue := UnifiedEvent{
		UnifiedEventID:       "UE-0123456789abcdef",
		OriginTime:           time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Latitude:             35.02,
		Longitude:            -120.008,
		DepthKm:              10.4,
		MagnitudeValue:       5.0,
		MagnitudeType:        "mw",
		Place:                ptrS("Central California"),
		Region:               ptrS("Central California"),
		Status:               StatusAutomatic,
		NumSources:           2,
		PreferredSource:      "usgs",
		SourceEventUIDs:      []string{"usgs:us1", "emsc:e1"},
		MagnitudeStd:         0.05,
		LocationSpreadKm:     5.6,
		SourceAgreementScore: 1.0,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	raw, err := json.Marshal(ue)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back UnifiedEvent
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.UnifiedEventID != ue.UnifiedEventID || back.NumSources != 2 {
		t.Errorf("round trip changed fields: %+v", back)
	}
	if len(back.SourceEventUIDs) != 2 || back.SourceEventUIDs[0] != "usgs:us1" {
		t.Errorf("source_event_uids changed: %v", back.SourceEventUIDs)
	}
	if !back.CreatedAt.Equal(now) || !back.UpdatedAt.Equal(now) {
		t.Errorf("timestamps changed: %+v", back)
	}
}
