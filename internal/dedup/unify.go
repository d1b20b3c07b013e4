// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/quakewatch/internal/geo"
	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/sources"
)

// UnifiedIDPrefix tags every unified event id.
const UnifiedIDPrefix = "UE-"

// UnifiedID derives the deterministic id of a cluster from its membership:
// sorted event uids joined with "|", SHA-256, first 16 hex characters. The
// id is stable for a fixed membership and changes when membership changes.
func UnifiedID(members []models.CanonicalEvent) string {
	uids := make([]string, len(members))
	for i, m := range members {
		uids[i] = m.EventUID
	}
	sort.Strings(uids)
	sum := sha256.Sum256([]byte(strings.Join(uids, "|")))
	return UnifiedIDPrefix + hex.EncodeToString(sum[:])[:16]
}

// preferredMember picks the cluster member that supplies the unified row's
// textual fields. Reviewed members outrank automatic ones; within the
// candidate set the highest-priority source wins, and equal priorities fall
// back to the lexicographically smallest event uid.
func preferredMember(members []models.CanonicalEvent, prio sources.PriorityTable) models.CanonicalEvent {
	candidates := members
	var reviewed []models.CanonicalEvent
	for _, m := range members {
		if m.Status == models.StatusReviewed {
			reviewed = append(reviewed, m)
		}
	}
	if len(reviewed) > 0 {
		candidates = reviewed
	}

	best := candidates[0]
	for _, m := range candidates[1:] {
		mr, br := prio.Rank(m.Source), prio.Rank(best.Source)
		if mr < br || (mr == br && m.EventUID < best.EventUID) {
			best = m
		}
	}
	return best
}

// Unify collapses one cluster into a unified event. Latitude, longitude,
// and depth are priority-weighted means over all members; every other field
// comes from the preferred member unchanged. Timestamps are stamped with
// now; the warehouse upserter preserves created_at for existing rows.
func Unify(c *Cluster, prio sources.PriorityTable, now time.Time) models.UnifiedEvent {
	members := c.Members
	preferred := preferredMember(members, prio)

	var lat, lon, depth, totalWeight float64
	for _, m := range members {
		w := prio.Weight(m.Source)
		lat += w * m.Latitude
		lon += w * m.Longitude
		depth += w * m.DepthKm
		totalWeight += w
	}
	if totalWeight > 0 {
		lat /= totalWeight
		lon /= totalWeight
		depth /= totalWeight
	} else {
		anchor := c.Anchor()
		lat, lon, depth = anchor.Latitude, anchor.Longitude, anchor.DepthKm
	}

	uids := make([]string, len(members))
	distinct := make(map[string]struct{}, len(members))
	for i, m := range members {
		uids[i] = m.EventUID
		distinct[m.Source] = struct{}{}
	}

	agreement := 1.0
	if len(members) > 1 {
		agreement = float64(len(distinct)) / float64(len(members))
	}

	return models.UnifiedEvent{
		UnifiedEventID:       UnifiedID(members),
		OriginTime:           preferred.OriginTime,
		Latitude:             lat,
		Longitude:            lon,
		DepthKm:              depth,
		MagnitudeValue:       preferred.MagnitudeValue,
		MagnitudeType:        preferred.MagnitudeType,
		Place:                preferred.Place,
		Region:               preferred.Region,
		Status:               preferred.Status,
		NumSources:           len(distinct),
		PreferredSource:      preferred.Source,
		SourceEventUIDs:      uids,
		MagnitudeStd:         magnitudeStd(members),
		LocationSpreadKm:     locationSpreadKm(members),
		SourceAgreementScore: agreement,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// UnifyAll maps Unify over a cluster list, preserving cluster order.
func UnifyAll(clusters []*Cluster, prio sources.PriorityTable, now time.Time) []models.UnifiedEvent {
	unified := make([]models.UnifiedEvent, len(clusters))
	for i, c := range clusters {
		unified[i] = Unify(c, prio, now)
	}
	return unified
}

// magnitudeStd is the population standard deviation of member magnitudes.
func magnitudeStd(members []models.CanonicalEvent) float64 {
	if len(members) < 2 {
		return 0
	}
	var mean float64
	for _, m := range members {
		mean += m.MagnitudeValue
	}
	mean /= float64(len(members))

	var variance float64
	for _, m := range members {
		d := m.MagnitudeValue - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(members)))
}

// locationSpreadKm is the maximum pairwise great-circle distance among
// members.
func locationSpreadKm(members []models.CanonicalEvent) float64 {
	var maxKm float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := geo.HaversineKm(members[i].Latitude, members[i].Longitude,
				members[j].Latitude, members[j].Longitude)
			if d > maxKm {
				maxKm = d
			}
		}
	}
	return maxKm
}
