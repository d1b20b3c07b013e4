// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the ingestion pipeline using the Prometheus client
library, exposing metrics for monitoring fetch health, pipeline throughput,
warehouse performance, and circuit breaker state.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Fetch Metrics:
  - catalog_fetch_duration_seconds: Per-source fetch latency (histogram)
    Labels: source
  - catalog_fetch_attempts_total: Fetch attempts including retries (counter)
    Labels: source, outcome (success, retry, failure)
  - catalog_fetch_payload_bytes: Response payload sizes (histogram)
    Labels: source

Pipeline Metrics:
  - events_parsed_total: Canonical events produced (counter)
    Labels: source
  - events_dead_lettered_total: Records diverted to dead-letter (counter)
    Labels: source
  - clusters_formed: Clusters formed in the most recent cycle (gauge)
  - unified_events_upserted_total: Unified rows upserted (counter)
  - pipeline_runs_total: Cycles by terminal status (counter)
    Labels: status (ok, failed)
  - pipeline_run_duration_seconds: End-to-end cycle duration (histogram)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state per catalog (gauge)
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_transitions_total: State transitions (counter)
  - circuit_breaker_requests_total: Requests by result (counter)

# Usage Example

	import (
	    "github.com/tomtom215/quakewatch/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())
	    metrics.ObserveAPIRequest("POST", "/ingest", 200, 1200*time.Millisecond)
	}

# Cardinality

Label values are bounded: source names come from the configured registry
(three by default), operations and tables from fixed constants, and status
codes from the handful the API emits.
*/
package metrics
