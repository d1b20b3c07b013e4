// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package fetch issues the per-catalog FDSN event queries. Each client owns
// one source's rate limiter and retry policy; the pipeline fans clients out
// concurrently and tolerates individual failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
	"github.com/tomtom215/quakewatch/internal/sources"
)

// EmptyGeoJSON substitutes for a 204 response on GeoJSON sources so the
// parser sees a well-formed empty collection.
const EmptyGeoJSON = `{"type":"FeatureCollection","features":[]}`

// fdsnTimeLayout is the FDSN query timestamp format: UTC, no zone suffix.
const fdsnTimeLayout = "2006-01-02T15:04:05"

// FetchError is the terminal failure of one source's fetch after all retry
// slots are burned.
type FetchError struct {
	Source     string
	LastStatus int // 0 when the last attempt was a transport error
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts, last status %d: %v",
		e.Source, e.Attempts, e.LastStatus, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves one catalog's raw payload for a time window. Implemented
// by Client and by the circuit-breaker wrapper.
type Fetcher interface {
	Fetch(ctx context.Context, windowStart, windowEnd time.Time, minMagnitude float64) (string, error)
	Source() string
}

// Client fetches one FDSN catalog with token-bucket rate limiting and
// exponential-backoff retries. Safe for sequential reuse across cycles; the
// limiter state persists so retries and subsequent cycles share the budget.
type Client struct {
	cfg        sources.SourceConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a fetch client for one source.
func NewClient(cfg sources.SourceConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// min_interval = 60 / rate_limit_rpm seconds between requests, with
		// one token of burst so the first call does not wait.
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1),
		sleep:   sleepContext,
	}
}

// Source returns the configured source name.
func (c *Client) Source() string { return c.cfg.Name }

// Fetch implements Fetcher. It performs up to max_retries+1 attempts,
// retrying only on transport errors, 5xx, and 429. A 204 is a success and
// yields the format-appropriate empty payload.
func (c *Client) Fetch(ctx context.Context, windowStart, windowEnd time.Time, minMagnitude float64) (string, error) {
	reqURL, err := c.buildURL(windowStart, windowEnd, minMagnitude)
	if err != nil {
		return "", &FetchError{Source: c.cfg.Name, Attempts: 0, Err: err}
	}

	var lastStatus int
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(c.cfg.RetryBackoffBase, float64(attempt-1)) * float64(time.Second))
			logging.Debug().
				Str("source", c.cfg.Name).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying catalog fetch")
			metrics.FetchAttempts.WithLabelValues(c.cfg.Name, "retry").Inc()
			if err := c.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		attempts++
		start := time.Now()
		body, status, err := c.doRequest(ctx, reqURL)
		metrics.FetchDuration.WithLabelValues(c.cfg.Name).Observe(time.Since(start).Seconds())

		switch {
		case err != nil:
			lastStatus, lastErr = 0, err
		case status == http.StatusOK:
			metrics.FetchAttempts.WithLabelValues(c.cfg.Name, "success").Inc()
			metrics.FetchPayloadBytes.WithLabelValues(c.cfg.Name).Observe(float64(len(body)))
			return body, nil
		case status == http.StatusNoContent:
			metrics.FetchAttempts.WithLabelValues(c.cfg.Name, "success").Inc()
			return c.emptyPayload(), nil
		case status >= 500 || status == http.StatusTooManyRequests:
			lastStatus = status
			lastErr = fmt.Errorf("status %d", status)
		default:
			// Non-retryable 4xx: fail immediately.
			metrics.FetchAttempts.WithLabelValues(c.cfg.Name, "failure").Inc()
			return "", &FetchError{
				Source:     c.cfg.Name,
				LastStatus: status,
				Attempts:   attempts,
				Err:        fmt.Errorf("status %d", status),
			}
		}
	}

	metrics.FetchAttempts.WithLabelValues(c.cfg.Name, "failure").Inc()
	return "", &FetchError{
		Source:     c.cfg.Name,
		LastStatus: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (c *Client) buildURL(windowStart, windowEnd time.Time, minMagnitude float64) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	q := base.Query()
	q.Set("format", c.cfg.QueryFormat())
	q.Set("starttime", windowStart.UTC().Format(fdsnTimeLayout))
	q.Set("endtime", windowEnd.UTC().Format(fdsnTimeLayout))
	q.Set("minmagnitude", fmt.Sprintf("%g", minMagnitude))
	q.Set("orderby", "time")
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "quakewatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}

func (c *Client) emptyPayload() string {
	if c.cfg.Format == sources.FormatFDSNText {
		return ""
	}
	return EmptyGeoJSON
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
