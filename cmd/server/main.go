// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package main is the entry point for the Quakewatch ingestion server.
//
// Quakewatch polls earthquake catalogs (USGS, EMSC, GFZ GEOFON), normalizes
// their payload dialects into one canonical record shape, reconciles
// observations of the same physical quake across catalogs, and maintains a
// deduplicated unified-event table in DuckDB.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered config (defaults, YAML file, env vars)
//  2. Database: DuckDB warehouse with raw/unified/dead-letter/run tables
//  3. Fetchers: one rate-limited, circuit-broken FDSN client per source
//  4. Pipeline: the fetch/parse/validate/cluster/unify/upsert cycle
//  5. HTTP API: POST /ingest trigger, health, metrics, read endpoints
//  6. Supervisor: suture tree running the HTTP server and the optional
//     interval scheduler
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the scheduler stops, the
// HTTP server drains in-flight requests, and the database closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/quakewatch/internal/api"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/fetch"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/parse"
	"github.com/tomtom215/quakewatch/internal/pipeline"
	"github.com/tomtom215/quakewatch/internal/sources"
	"github.com/tomtom215/quakewatch/internal/supervisor"
	"github.com/tomtom215/quakewatch/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Float64("min_magnitude", cfg.Pipeline.MinMagnitude).
		Bool("scheduler", cfg.Pipeline.SchedulerEnabled).
		Msg("Starting Quakewatch")

	db, err := database.New(&cfg.Database, cfg.Pipeline.WindowCacheTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open warehouse")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse")
		}
	}()

	runner, err := buildPipeline(cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	handler := api.NewHandler(runner, db)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlog(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if cfg.Pipeline.SchedulerEnabled {
		tree.AddIngestService(services.NewSchedulerService(runner, cfg.Pipeline.Interval, true))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	logging.Info().
		Str("addr", server.Addr).
		Msg("Quakewatch running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor exited with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Supervisor failed")
		}
	}

	logging.Info().Msg("Quakewatch stopped")
}

// buildPipeline wires the per-source fetchers and parsers into a runner.
func buildPipeline(cfg *config.Config, db *database.DB) (*pipeline.Runner, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}

	var fetchers []fetch.Fetcher
	parsers := make(map[string]parse.Parser)
	for _, src := range registry.Enabled() {
		fetchers = append(fetchers, fetch.NewCircuitBreakerFetcher(fetch.NewClient(src)))

		switch src.Format {
		case sources.FormatGeoJSONUSGS:
			parsers[src.Name] = parse.NewUSGSGeoJSON(src.Name)
		case sources.FormatGeoJSONEMSC:
			parsers[src.Name] = parse.NewEMSCGeoJSON(src.Name)
		case sources.FormatFDSNText:
			parsers[src.Name] = parse.NewFDSNText(src.Name)
		default:
			return nil, fmt.Errorf("source %q has unknown format %q", src.Name, src.Format)
		}
	}
	if len(fetchers) == 0 {
		return nil, errors.New("no sources enabled")
	}

	return pipeline.New(fetchers, parsers, db, cfg.PriorityTable(), cfg.Pipeline)
}
