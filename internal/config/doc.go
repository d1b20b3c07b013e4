// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package config loads and validates the application configuration.

Configuration is layered with Koanf v2, later layers overriding earlier
ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/quakewatch/config.yaml)
 3. Environment variables (HTTP_PORT, DUCKDB_PATH, PIPELINE_MIN_MAGNITUDE, ...)

The loaded Config carries the HTTP server settings, the DuckDB warehouse
location, the pipeline tuning knobs (fetch window, dedup window, minimum
magnitude, scheduler interval), the zerolog settings, the catalog source
list, and the source priority ordering the unifier consults.

Validation combines go-playground/validator struct tags with cross-field
checks: source names must be unique and the priority list may only name
configured sources.

Example:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	registry, _ := cfg.Registry()
*/
package config
