// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package sources holds the static per-catalog configuration: FDSN endpoints,
// poll cadence, retry policy, rate limits, payload format, and the source
// priority table the unifier consults.
package sources

import (
	"fmt"
	"sort"
	"time"
)

// Payload format tags. Every enabled source carries exactly one tag and the
// parser registry is keyed by it.
const (
	FormatGeoJSONUSGS = "geojson-usgs"
	FormatGeoJSONEMSC = "geojson-emsc"
	FormatFDSNText    = "fdsn-text"
)

// SourceConfig is the static configuration for one FDSN catalog. Immutable
// after registry construction.
type SourceConfig struct {
	Name             string        `koanf:"name" validate:"required"`
	BaseURL          string        `koanf:"base_url" validate:"required,url"`
	PollInterval     time.Duration `koanf:"poll_interval"`
	MaxRetries       int           `koanf:"max_retries" validate:"min=0"`
	RetryBackoffBase float64       `koanf:"retry_backoff_base" validate:"min=1"`
	RateLimitRPM     int           `koanf:"rate_limit_rpm" validate:"min=1"`
	Timeout          time.Duration `koanf:"timeout"`
	Format           string        `koanf:"format" validate:"oneof=geojson-usgs geojson-emsc fdsn-text"`
	Enabled          bool          `koanf:"enabled"`
}

// QueryFormat returns the FDSN "format" query parameter for this source.
func (c SourceConfig) QueryFormat() string {
	if c.Format == FormatFDSNText {
		return "text"
	}
	return "geojson"
}

// Registry holds all configured sources. Read-only after construction.
type Registry struct {
	byName map[string]SourceConfig
	order  []string
}

// NewRegistry builds a registry from the given configs. Names must be unique.
func NewRegistry(configs []SourceConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]SourceConfig, len(configs))}
	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("source with empty name (base_url %q)", cfg.BaseURL)
		}
		if _, dup := r.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate source name %q", cfg.Name)
		}
		r.byName[cfg.Name] = cfg
		r.order = append(r.order, cfg.Name)
	}
	return r, nil
}

// Lookup returns the config for a source by name.
func (r *Registry) Lookup(name string) (SourceConfig, bool) {
	cfg, ok := r.byName[name]
	return cfg, ok
}

// Enabled returns the enabled sources in registration order.
func (r *Registry) Enabled() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.order))
	for _, name := range r.order {
		if cfg := r.byName[name]; cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// Names returns all registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSources returns the built-in catalog set: USGS, EMSC, and GFZ
// GEOFON. Additional FDSN peers can be layered in via configuration.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:             "usgs",
			BaseURL:          "https://earthquake.usgs.gov/fdsnws/event/1/query",
			PollInterval:     60 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 2.0,
			RateLimitRPM:     30,
			Timeout:          15 * time.Second,
			Format:           FormatGeoJSONUSGS,
			Enabled:          true,
		},
		{
			Name:             "emsc",
			BaseURL:          "https://seismicportal.eu/fdsnws/event/1/query",
			PollInterval:     120 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 2.0,
			RateLimitRPM:     20,
			Timeout:          20 * time.Second,
			Format:           FormatGeoJSONEMSC,
			Enabled:          true,
		},
		{
			Name:             "gfz",
			BaseURL:          "https://geofon.gfz.de/fdsnws/event/1/query",
			PollInterval:     180 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 2.0,
			RateLimitRPM:     10,
			Timeout:          20 * time.Second,
			Format:           FormatFDSNText,
			Enabled:          true,
		},
	}
}

// DefaultRegistry returns a registry over DefaultSources.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSources())
	if err != nil {
		// DefaultSources is a compile-time constant set; a duplicate here is
		// a programming error.
		panic(err)
	}
	return r
}
