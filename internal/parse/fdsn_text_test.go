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

const fdsnPayload = `#EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|ContributorID|MagType|Magnitude|MagAuthor|EventLocationName
gfz2024abcd|2024-01-15T12:00:05.123456|35.82|-120.48|11.8|GFZ|GEOFON|GFZ|gfz2024abcd|mb|5.0|GFZ|Central California
gfz2024wxyz|2024-01-15T11:30:00|-20.5|182.0|35.0|GFZ|GEOFON|GFZ|gfz2024wxyz|Mw|6.1|GFZ|Fiji Region`

func TestFDSNTextParse(t *testing.T) {
	events, err := NewFDSNText("gfz").Parse(fdsnPayload, fetchedAt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	ev := events[0]
	if ev.EventUID != "gfz:gfz2024abcd" {
		t.Errorf("event_uid = %q", ev.EventUID)
	}
	if !ev.OriginTime.Equal(time.Date(2024, 1, 15, 12, 0, 5, 123456000, time.UTC)) {
		t.Errorf("origin time = %v", ev.OriginTime)
	}
	if ev.Latitude != 35.82 || ev.Longitude != -120.48 || ev.DepthKm != 11.8 {
		t.Errorf("coords = (%v, %v, %v)", ev.Latitude, ev.Longitude, ev.DepthKm)
	}
	if ev.MagnitudeValue != 5.0 || ev.MagnitudeType != "mb" {
		t.Errorf("magnitude = %v %q", ev.MagnitudeValue, ev.MagnitudeType)
	}
	if ev.Status != models.StatusAutomatic {
		t.Errorf("status = %q", ev.Status)
	}
	if ev.Author == nil || *ev.Author != "GFZ" {
		t.Errorf("author = %v", ev.Author)
	}
	if ev.Place == nil || *ev.Place != "Central California" {
		t.Errorf("place = %v", ev.Place)
	}
	if ev.Region == nil || *ev.Region != "Central California" {
		t.Errorf("region = %v", ev.Region)
	}

	// Longitude 182 wraps into [-180, 180].
	if events[1].Longitude != -178.0 {
		t.Errorf("wrapped longitude = %v, want -178", events[1].Longitude)
	}
	if events[1].MagnitudeType != "mw" {
		t.Errorf("magtype = %q, want lowercased mw", events[1].MagnitudeType)
	}
}

func TestFDSNTextSkipsHeadersCommentsAndBlanks(t *testing.T) {
	raw := "EventID|Time|Latitude|Longitude|Depth/km\n" +
		"# a comment line\n" +
		"\n" +
		"ev1|2024-01-15T12:00:00Z|10.0|20.0|5.0\r\n"
	events, err := NewFDSNText("gfz").Parse(raw, fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].SourceEventID != "ev1" {
		t.Errorf("expected only ev1, got %+v", events)
	}
}

func TestFDSNTextShortAndBadLines(t *testing.T) {
	raw := "ev1|2024-01-15T12:00:00|10.0\n" + // too few columns
		"|2024-01-15T12:00:00|10.0|20.0|5.0\n" + // empty event id
		"ev2|garbage-time|10.0|20.0|5.0\n" +
		"ev3|2024-01-15T12:00:00|not-a-lat|20.0|5.0\n" +
		"ev4|2024-01-15T12:00:00|10.0|20.0|5.0"
	events, err := NewFDSNText("gfz").Parse(raw, fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].SourceEventID != "ev4" {
		t.Errorf("expected only ev4, got %+v", events)
	}
}

func TestFDSNTextMissingOptionalColumns(t *testing.T) {
	// Minimal row: id, time, lat, lon, depth. No magnitude columns at all.
	events, err := NewFDSNText("gfz").Parse("ev5|2024-01-15T12:00:00|10.0|20.0|", fetchedAt)
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if ev.DepthKm != 0 {
		t.Errorf("empty depth should default to 0, got %v", ev.DepthKm)
	}
	if ev.MagnitudeValue != 0 || ev.MagnitudeType != "ml" {
		t.Errorf("magnitude defaults: %v %q", ev.MagnitudeValue, ev.MagnitudeType)
	}
	if ev.Author != nil || ev.Place != nil {
		t.Errorf("expected nil optionals, got author=%v place=%v", ev.Author, ev.Place)
	}
}

func TestFDSNTextEmptyBody(t *testing.T) {
	for _, raw := range []string{"", "\n", "   \n  "} {
		events, err := NewFDSNText("gfz").Parse(raw, fetchedAt)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 0 {
			t.Errorf("expected 0 events for %q, got %d", raw, len(events))
		}
	}
}
