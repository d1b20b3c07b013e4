// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package dedup groups canonical events that describe the same physical
// earthquake and collapses each group into a single unified event. The
// whole package is deterministic: the same input window always yields the
// same clusters and the same unified ids.
package dedup

import (
	"math"
	"sort"

	"github.com/tomtom215/quakewatch/internal/geo"
	"github.com/tomtom215/quakewatch/internal/models"
)

// Match gates and score weights. Two observations can only describe the
// same earthquake if they are close in time, space, and magnitude; the
// score blends the three normalized distances.
const (
	MaxTimeDiffSec = 30.0
	MaxDistanceKm  = 100.0
	MaxMagDiff     = 0.5

	timeWeight = 0.4
	distWeight = 0.4
	magWeight  = 0.2

	// MatchScoreThreshold is the minimum score for attaching a record to
	// an existing cluster.
	MatchScoreThreshold = 0.6
)

// Cluster is a transient group of canonical events believed to describe one
// earthquake. The first member is the anchor; candidates are always scored
// against it. Clusters are rebuilt from the raw window every cycle and
// never persisted.
type Cluster struct {
	Members []models.CanonicalEvent
}

// Anchor returns the first member inserted into the cluster.
func (c *Cluster) Anchor() models.CanonicalEvent {
	return c.Members[0]
}

// MatchScore computes the similarity of two observations in [0, 1].
// Exceeding any single gate (time, distance, magnitude) zeroes the score
// outright; otherwise each term contributes linearly.
func MatchScore(a, b models.CanonicalEvent) float64 {
	dt := math.Abs(a.OriginTime.Sub(b.OriginTime).Seconds())
	if dt > MaxTimeDiffSec {
		return 0
	}
	dkm := geo.HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	if dkm > MaxDistanceKm {
		return 0
	}
	dmag := math.Abs(a.MagnitudeValue - b.MagnitudeValue)
	if dmag > MaxMagDiff {
		return 0
	}
	return timeWeight*(1-dt/MaxTimeDiffSec) +
		distWeight*(1-dkm/MaxDistanceKm) +
		magWeight*(1-dmag/MaxMagDiff)
}

// ClusterEvents greedily groups the window. Records are processed in
// ascending origin-time order (stable, so same-instant records keep their
// input order); each record attaches to the existing cluster whose anchor
// it scores highest against, provided the score clears the threshold, and
// starts a new cluster otherwise. Ties go to the earliest-created cluster.
func ClusterEvents(events []models.CanonicalEvent) []*Cluster {
	ordered := make([]models.CanonicalEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OriginTime.Before(ordered[j].OriginTime)
	})

	var clusters []*Cluster
	for _, ev := range ordered {
		var best *Cluster
		bestScore := 0.0
		for _, c := range clusters {
			score := MatchScore(ev, c.Anchor())
			if score >= MatchScoreThreshold && score > bestScore {
				best = c
				bestScore = score
			}
		}
		if best != nil {
			best.Members = append(best.Members, ev)
			continue
		}
		clusters = append(clusters, &Cluster{Members: []models.CanonicalEvent{ev}})
	}
	return clusters
}
