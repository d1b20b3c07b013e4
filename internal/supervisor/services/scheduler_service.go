// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/pipeline"
)

// Ingester runs one ingestion cycle. *pipeline.Runner implements it.
type Ingester interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// SchedulerService triggers an ingestion cycle on a fixed interval. Cycles
// never overlap: the tick handler runs the pipeline inline, so a slow run
// simply absorbs the ticks that fire while it is in flight. A failed run is
// logged and the schedule continues; the supervisor only restarts the
// service if Serve itself returns.
type SchedulerService struct {
	ingester Ingester
	interval time.Duration
	name     string

	// runImmediately fires one cycle at startup before the first tick.
	runImmediately bool
}

// NewSchedulerService returns a scheduler over the given pipeline.
func NewSchedulerService(ingester Ingester, interval time.Duration, runImmediately bool) *SchedulerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SchedulerService{
		ingester:       ingester,
		interval:       interval,
		name:           "ingest-scheduler",
		runImmediately: runImmediately,
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Ingest scheduler started")

	if s.runImmediately {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Ingest scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SchedulerService) runOnce(ctx context.Context) {
	result, err := s.ingester.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Error().Err(err).Msg("Scheduled ingestion cycle failed")
		return
	}
	logging.Debug().
		Str("run_id", result.RunID).
		Int("raw_events", result.RawEvents).
		Int("unified_events", result.UnifiedEvents).
		Msg("Scheduled ingestion cycle finished")
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return s.name
}
