// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package pipeline orchestrates one ingestion cycle: concurrent catalog
// fetches, parsing, validation with a dead-letter path, raw appends, the
// dedup window read, clustering, unification, the warehouse upsert, and the
// run log. Fetches fan out; everything after the gather is serial so
// clustering stays deterministic.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/dedup"
	"github.com/tomtom215/quakewatch/internal/fetch"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/parse"
	"github.com/tomtom215/quakewatch/internal/sources"
	"github.com/tomtom215/quakewatch/internal/validate"
)

// Warehouse is the slice of the database layer the pipeline needs.
// *database.DB implements it; tests substitute fakes.
type Warehouse interface {
	AppendRawEvents(ctx context.Context, events []models.CanonicalEvent) error
	AppendDeadLetters(ctx context.Context, records []models.DeadLetterRecord) error
	RecentCanonicalEvents(ctx context.Context, since time.Time) ([]models.CanonicalEvent, error)
	UpsertUnifiedEvents(ctx context.Context, events []models.UnifiedEvent) error
	InsertRunLog(ctx context.Context, run models.RunLog) error
}

// Result is the summary returned to the trigger caller.
type Result struct {
	RunID         string   `json:"run_id"`
	Sources       []string `json:"sources"`
	RawEvents     int      `json:"raw_events"`
	UnifiedEvents int      `json:"unified_events"`
	DeadLetters   int      `json:"dead_letters"`
	DurationS     float64  `json:"duration_s"`
}

// Runner executes ingestion cycles. Construct once and reuse. Run holds an
// internal mutex, so a scheduled cycle and a manual trigger arriving
// together execute one after the other rather than racing the warehouse.
type Runner struct {
	fetchers []fetch.Fetcher
	parsers  map[string]parse.Parser
	store    Warehouse
	prio     sources.PriorityTable
	cfg      config.PipelineConfig

	// mu serializes cycles across all trigger paths.
	mu sync.Mutex

	// now is swapped out by tests for deterministic windows.
	now func() time.Time
}

// New builds a runner over the given fetchers and parser registry. Every
// fetcher's source must have a parser.
func New(fetchers []fetch.Fetcher, parsers map[string]parse.Parser, store Warehouse, prio sources.PriorityTable, cfg config.PipelineConfig) (*Runner, error) {
	for _, f := range fetchers {
		if parsers[f.Source()] == nil {
			return nil, fmt.Errorf("no parser registered for source %q", f.Source())
		}
	}
	return &Runner{
		fetchers: fetchers,
		parsers:  parsers,
		store:    store,
		prio:     prio,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// errorMessageMaxLen bounds the run log's error column; a pathological
// upstream error body must not bloat the bookkeeping table.
const errorMessageMaxLen = 1024

func truncateError(msg string) string {
	if len(msg) > errorMessageMaxLen {
		return msg[:errorMessageMaxLen]
	}
	return msg
}

// fetchResult is one source's gathered outcome.
type fetchResult struct {
	source string
	body   string
	err    error
}

// Run executes one cycle. The cycle fails only when every source fails or
// the warehouse rejects a write; a subset of failed sources is tolerated
// and reflected in the run log's sources list.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startedAt := r.now().UTC()
	runID := uuid.NewString()[:8]
	log := logging.With().Str("run_id", runID).Logger()

	windowEnd := startedAt
	windowStart := windowEnd.Add(-r.cfg.FetchWindow)

	results := r.fetchAll(ctx, windowStart, windowEnd)

	var fetched []string
	var rawEvents []models.CanonicalEvent
	var deadLetters []models.DeadLetterRecord
	failures := 0

	for _, res := range results {
		if res.err != nil {
			failures++
			log.Warn().Str("source", res.source).Err(res.err).Msg("Source fetch failed, continuing without it")
			continue
		}
		fetched = append(fetched, res.source)

		events, dead := r.processPayload(res.source, res.body, startedAt)
		rawEvents = append(rawEvents, events...)
		deadLetters = append(deadLetters, dead...)
	}

	if failures == len(r.fetchers) && len(r.fetchers) > 0 {
		err := fmt.Errorf("all %d sources failed", failures)
		r.finishRun(ctx, log, runID, startedAt, models.RunStatusFailed, fetched, 0, 0, len(deadLetters), err)
		return Result{}, err
	}

	if err := r.store.AppendDeadLetters(ctx, deadLetters); err != nil {
		// Dead letters are forensics, not truth; losing them does not fail
		// the cycle.
		log.Error().Err(err).Msg("Failed to persist dead letters")
	}

	if err := r.store.AppendRawEvents(ctx, rawEvents); err != nil {
		err = fmt.Errorf("raw append: %w", err)
		r.finishRun(ctx, log, runID, startedAt, models.RunStatusFailed, fetched, 0, 0, len(deadLetters), err)
		return Result{}, err
	}

	window, err := r.store.RecentCanonicalEvents(ctx, windowEnd.Add(-r.cfg.DedupWindow))
	if err != nil {
		err = fmt.Errorf("dedup window read: %w", err)
		r.finishRun(ctx, log, runID, startedAt, models.RunStatusFailed, fetched, len(rawEvents), 0, len(deadLetters), err)
		return Result{}, err
	}

	clusters := dedup.ClusterEvents(window)
	unified := dedup.UnifyAll(clusters, r.prio, r.now().UTC())
	metrics.ClustersFormed.Set(float64(len(clusters)))

	if err := r.store.UpsertUnifiedEvents(ctx, unified); err != nil {
		err = fmt.Errorf("unified upsert: %w", err)
		r.finishRun(ctx, log, runID, startedAt, models.RunStatusFailed, fetched, len(rawEvents), 0, len(deadLetters), err)
		return Result{}, err
	}

	r.finishRun(ctx, log, runID, startedAt, models.RunStatusOK, fetched, len(rawEvents), len(unified), len(deadLetters), nil)

	finishedAt := r.now().UTC()
	return Result{
		RunID:         runID,
		Sources:       fetched,
		RawEvents:     len(rawEvents),
		UnifiedEvents: len(unified),
		DeadLetters:   len(deadLetters),
		DurationS:     finishedAt.Sub(startedAt).Seconds(),
	}, nil
}

// fetchAll fans out one fetch per source and gathers all outcomes. A failed
// peer never cancels the others.
func (r *Runner) fetchAll(ctx context.Context, windowStart, windowEnd time.Time) []fetchResult {
	results := make([]fetchResult, len(r.fetchers))
	var wg sync.WaitGroup
	for i, f := range r.fetchers {
		wg.Add(1)
		go func(i int, f fetch.Fetcher) {
			defer wg.Done()
			body, err := f.Fetch(ctx, windowStart, windowEnd, r.cfg.MinMagnitude)
			results[i] = fetchResult{source: f.Source(), body: body, err: err}
		}(i, f)
	}
	wg.Wait()
	return results
}

// processPayload parses one source's payload and partitions the records
// into valid events and dead letters. An envelope failure dead-letters the
// whole payload under the source name.
func (r *Runner) processPayload(source, body string, fetchedAt time.Time) ([]models.CanonicalEvent, []models.DeadLetterRecord) {
	parser := r.parsers[source]
	events, err := parser.Parse(body, fetchedAt)
	if err != nil {
		metrics.EventsDeadLettered.WithLabelValues(source).Inc()
		return nil, []models.DeadLetterRecord{{
			Source:        source,
			RawPayload:    body,
			ErrorMessages: []string{fmt.Sprintf("payload parse failed: %v", err)},
			CreatedAt:     fetchedAt,
		}}
	}
	metrics.EventsParsed.WithLabelValues(source).Add(float64(len(events)))

	var valid []models.CanonicalEvent
	var dead []models.DeadLetterRecord
	for _, ev := range events {
		if violations := validate.Validate(ev); len(violations) > 0 {
			id := ev.SourceEventID
			dead = append(dead, models.DeadLetterRecord{
				Source:        source,
				SourceEventID: &id,
				RawPayload:    ev.RawPayload,
				ErrorMessages: violations,
				CreatedAt:     fetchedAt,
			})
			metrics.EventsDeadLettered.WithLabelValues(source).Inc()
			continue
		}
		valid = append(valid, ev)
	}
	return valid, dead
}

// finishRun writes the run log and observes the cycle metrics. Run log
// failures are logged and suppressed so a bookkeeping hiccup never masks
// the cycle's real outcome.
func (r *Runner) finishRun(ctx context.Context, log zerolog.Logger, runID string, startedAt time.Time, status string, fetched []string, raw, unified, dead int, runErr error) {
	finishedAt := r.now().UTC()
	duration := finishedAt.Sub(startedAt).Seconds()

	metrics.PipelineRuns.WithLabelValues(status).Inc()
	metrics.PipelineRunDuration.Observe(duration)

	run := models.RunLog{
		RunID:           runID,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		Status:          status,
		SourcesFetched:  fetched,
		RawCount:        raw,
		UnifiedCount:    unified,
		DeadLetterCount: dead,
		DurationSeconds: duration,
	}
	if runErr != nil {
		msg := truncateError(runErr.Error())
		run.ErrorMessage = &msg
	}

	if err := r.store.InsertRunLog(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to write run log")
	}

	log.Info().
		Str("status", status).
		Strs("sources", fetched).
		Int("raw_events", raw).
		Int("unified_events", unified).
		Int("dead_letters", dead).
		Float64("duration_s", duration).
		Msg("Ingestion cycle finished")
}
