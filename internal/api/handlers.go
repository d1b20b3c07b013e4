// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/pipeline"
)

// Ingester runs one ingestion cycle. *pipeline.Runner implements it.
type Ingester interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// Reader is the warehouse slice the read endpoints need. *database.DB
// implements it.
type Reader interface {
	RecentRuns(ctx context.Context, limit int) ([]models.RunLog, error)
	GetUnifiedEvent(ctx context.Context, unifiedEventID string) (*models.UnifiedEvent, error)
	DeadLetters(ctx context.Context, source string, limit int) ([]models.DeadLetterRecord, error)
}

// Handler carries the HTTP endpoints. Overlapping /ingest invocations are
// serialized by the Ingester itself, which also covers the scheduler path;
// an HTTP trigger that arrives while a run is in flight waits for it.
type Handler struct {
	ingester Ingester
	reader   Reader
}

// NewHandler returns a handler over the given pipeline and warehouse.
func NewHandler(ingester Ingester, reader Reader) *Handler {
	return &Handler{ingester: ingester, reader: reader}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ingest triggers one ingestion cycle and returns its summary.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	result, err := h.ingester.Run(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Ingestion cycle failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Runs returns the most recent run logs, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	runs, err := h.reader.RecentRuns(r.Context(), limit)
	if err != nil {
		logging.Error().Err(err).Msg("Run log query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if runs == nil {
		runs = []models.RunLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// UnifiedEvent returns one unified event by id, 404 when absent.
func (h *Handler) UnifiedEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := h.reader.GetUnifiedEvent(r.Context(), id)
	if err != nil {
		logging.Error().Err(err).Str("unified_event_id", id).Msg("Unified event query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unified event not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// DeadLetters returns recent dead-letter records, optionally filtered by
// ?source=.
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	records, err := h.reader.DeadLetters(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		logging.Error().Err(err).Msg("Dead letter query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if records == nil {
		records = []models.DeadLetterRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dead_letters": records})
}

// queryLimit parses ?limit= with a default, clamped to [1, 500].
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
