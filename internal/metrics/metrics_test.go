// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		err       error
	}{
		{"successful append", "append", "raw_events", nil},
		{"successful upsert", "upsert", "unified_events", nil},
		{"failed select", "select", "raw_events", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CollectAndCount(DBQueryErrors)
			ObserveDBQuery(tt.operation, tt.table, time.Now().Add(-5*time.Millisecond), tt.err)
			after := testutil.CollectAndCount(DBQueryErrors)
			if tt.err != nil && after <= before {
				t.Error("error counter did not grow on failed query")
			}
		})
	}
}

func TestObserveAPIRequest(t *testing.T) {
	ObserveAPIRequest("POST", "/ingest", 200, 1200*time.Millisecond)
	ObserveAPIRequest("GET", "/health", 200, time.Millisecond)

	got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/ingest", "200"))
	if got < 1 {
		t.Errorf("api_requests_total = %v, want >= 1", got)
	}
}

func TestFetchCountersAreLabelled(t *testing.T) {
	FetchAttempts.WithLabelValues("usgs", "success").Inc()
	FetchAttempts.WithLabelValues("usgs", "retry").Inc()
	FetchAttempts.WithLabelValues("gfz", "failure").Inc()

	if testutil.ToFloat64(FetchAttempts.WithLabelValues("usgs", "retry")) < 1 {
		t.Error("retry counter not recorded")
	}
}

func TestCircuitBreakerGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("emsc").Set(2)
	if testutil.ToFloat64(CircuitBreakerState.WithLabelValues("emsc")) != 2 {
		t.Error("gauge did not hold open state")
	}
	CircuitBreakerState.WithLabelValues("emsc").Set(0)
}
