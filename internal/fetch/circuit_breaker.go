// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package fetch

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/metrics"
)

// CircuitBreakerFetcher wraps a Fetcher with the circuit breaker pattern so
// a catalog that is down or rate-limiting hard stops consuming retry budget
// every cycle.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly or drive failures through a test server.
type CircuitBreakerFetcher struct {
	inner Fetcher
	cb    *gobreaker.CircuitBreaker[string]
}

// NewCircuitBreakerFetcher wraps a fetcher. Configuration:
//   - Max 1 probe request in half-open state (fetches are per-cycle, not
//     concurrent per source)
//   - 5 minute measurement window
//   - 5 minute timeout before attempting recovery
//   - Opens after 3 consecutive failures
func NewCircuitBreakerFetcher(inner Fetcher) *CircuitBreakerFetcher {
	source := inner.Source()
	metrics.CircuitBreakerState.WithLabelValues(source).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     5 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().
				Str("source", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Catalog circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerFetcher{inner: inner, cb: cb}
}

// Source returns the wrapped fetcher's source name.
func (f *CircuitBreakerFetcher) Source() string { return f.inner.Source() }

// Fetch implements Fetcher with breaker protection.
func (f *CircuitBreakerFetcher) Fetch(ctx context.Context, windowStart, windowEnd time.Time, minMagnitude float64) (string, error) {
	source := f.inner.Source()
	body, err := f.cb.Execute(func() (string, error) {
		return f.inner.Fetch(ctx, windowStart, windowEnd, minMagnitude)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(source, "rejected").Inc()
			logging.Warn().Str("source", source).Err(err).Msg("Catalog fetch rejected by open circuit")
			return "", &FetchError{Source: source, Attempts: 0, Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(source, "failure").Inc()
		return "", err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(source, "success").Inc()
	return body, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
