package photoorder

import (
	"math"
	"sort"
)

// validPosition reports whether p holds a usable rank.
func validPosition(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// Normalize sorts entries into display order and renumbers them 0..n-1.
//
// Entries sort by position ascending; entries without a finite position sort
// last. Ties break on CreatedAt (oldest first), then on ID, so the first
// observation of an unordered folder is deterministic.
//
// changed is true when any stored position was missing, fractional, or not
// equal to the entry's index in the result; the caller then persists the
// whole folder. The input slice is not modified.
func Normalize(entries []PhotoEntry) (sorted []PhotoEntry, changed bool) {
	sorted = make([]PhotoEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		av, bv := validPosition(a.Position), validPosition(b.Position)
		if av != bv {
			return av
		}
		if av && *a.Position != *b.Position {
			return *a.Position < *b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for i := range sorted {
		p := sorted[i].Position
		if !validPosition(p) || *p != math.Trunc(*p) || int(*p) != i {
			changed = true
		}
		sorted[i].Position = positionOf(i)
	}
	return sorted, changed
}
