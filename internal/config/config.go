// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/quakewatch/internal/sources"
	"github.com/tomtom215/quakewatch/internal/validation"
)

// Config is the root configuration, assembled from defaults, an optional
// YAML file, and environment variables (highest priority).
type Config struct {
	Server   ServerConfig           `koanf:"server"`
	Database DatabaseConfig         `koanf:"database"`
	Pipeline PipelineConfig         `koanf:"pipeline"`
	Logging  LoggingConfig          `koanf:"logging"`
	Sources  []sources.SourceConfig `koanf:"sources" validate:"min=1,dive"`
	Priority []string               `koanf:"priority" validate:"min=1"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the DuckDB warehouse.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = runtime default
}

// PipelineConfig tunes one ingestion cycle.
type PipelineConfig struct {
	// FetchWindow is the [now - window, now] span each catalog is queried
	// for. Wider than the trigger interval to absorb delayed updates.
	FetchWindow time.Duration `koanf:"fetch_window"`
	// DedupWindow is the raw-event lookback the clusterer reads.
	DedupWindow time.Duration `koanf:"dedup_window"`
	// MinMagnitude filters the catalog queries server-side.
	MinMagnitude float64 `koanf:"min_magnitude" validate:"min=-2,max=10"`
	// Interval drives the built-in scheduler when it is enabled; external
	// triggers hit POST /ingest directly.
	Interval         time.Duration `koanf:"interval"`
	SchedulerEnabled bool          `koanf:"scheduler_enabled"`
	// WindowCacheTTL bounds how long a cycle may reuse a previously loaded
	// raw window.
	WindowCacheTTL time.Duration `koanf:"window_cache_ttl"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Registry builds the source registry from the configured source list.
func (c *Config) Registry() (*sources.Registry, error) {
	return sources.NewRegistry(c.Sources)
}

// PriorityTable builds the priority table from the configured ordering.
func (c *Config) PriorityTable() sources.PriorityTable {
	return sources.NewPriorityTable(c.Priority)
}

// Validate checks struct tags plus the cross-field rules the tags cannot
// express: unique source names and a priority list that only names
// configured sources.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	known := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		known[src.Name] = true
	}
	for _, name := range c.Priority {
		if !known[name] {
			return fmt.Errorf("config validation: priority entry %q is not a configured source", name)
		}
	}
	return nil
}
