// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package sources

// PriorityTable orders sources for preferred-member selection and spatial
// weighting. Lower rank means higher priority. The table is passed explicitly
// to the unifier so tests can construct custom orderings.
type PriorityTable struct {
	order []string
	ranks map[string]int
}

// NewPriorityTable builds a table from an ordered source name list.
func NewPriorityTable(order []string) PriorityTable {
	ranks := make(map[string]int, len(order))
	for i, name := range order {
		if _, seen := ranks[name]; !seen {
			ranks[name] = i
		}
	}
	return PriorityTable{order: append([]string(nil), order...), ranks: ranks}
}

// DefaultPriority returns the built-in ordering: usgs > emsc > gfz.
func DefaultPriority() PriorityTable {
	return NewPriorityTable([]string{"usgs", "emsc", "gfz"})
}

// Rank returns the priority index of a source. Unknown sources rank after
// every known source (rank = table length).
func (p PriorityTable) Rank(source string) int {
	if rank, ok := p.ranks[source]; ok {
		return rank
	}
	return len(p.order)
}

// Weight returns the spatial aggregation weight of a source:
// max(1, len(table) - rank). Unknown sources weigh 1.
func (p PriorityTable) Weight(source string) float64 {
	w := float64(len(p.order) - p.Rank(source))
	if w < 1 {
		return 1
	}
	return w
}

// Len returns the number of entries in the table.
func (p PriorityTable) Len() int {
	return len(p.order)
}
