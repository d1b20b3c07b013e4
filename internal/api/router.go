// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package api provides the HTTP trigger surface using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the HTTP-level knobs the router needs.
type RouterConfig struct {
	// RateLimitRequests per RateLimitWindow, applied to /ingest only.
	// Zero disables the limiter.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Router wires handlers into a chi mux.
type Router struct {
	handler *Handler
	cfg     RouterConfig
}

// NewRouter returns a router over the given handler.
func NewRouter(handler *Handler, cfg RouterConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the full route tree. Health and metrics stay outside the
// rate limit so probes and scrapes never contend with trigger traffic.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())

	r.Get("/health", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if router.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(router.cfg.RateLimitRequests, router.cfg.RateLimitWindow))
		}
		r.Post("/ingest", router.handler.Ingest)
	})

	r.Get("/runs", router.handler.Runs)
	r.Get("/events/unified/{id}", router.handler.UnifiedEvent)
	r.Get("/deadletters", router.handler.DeadLetters)

	return r
}
