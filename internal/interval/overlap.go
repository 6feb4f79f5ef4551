// Package interval holds the overlap and intersection rules for condition
// windows. An open end counts as "later than anything" only inside these
// comparisons.
package interval

import (
	"slices"

	"github.com/gustycube/pingscope/internal/types"
)

// Overlaps reports whether a and b share at least one instant. Touching
// endpoints overlap.
func Overlaps(a, b types.Interval) bool {
	return startsBy(a, b.End) && startsBy(b, a.End)
}

// startsBy reports iv.Start <= end, vacuously true for an open end.
func startsBy(iv types.Interval, end types.End) bool {
	t, ok := end.Time()
	if !ok {
		return true
	}
	return !iv.Start.After(t)
}

// Intersect returns the common window of a and b. The caller must have
// checked Overlaps.
func Intersect(a, b types.Interval) types.Interval {
	out := types.Interval{Start: a.Start, End: a.End}
	if b.Start.After(out.Start) {
		out.Start = b.Start
	}
	switch {
	case a.End.IsOpen():
		out.End = b.End
	case b.End.IsOpen():
		out.End = a.End
	case b.End.Compare(a.End) < 0:
		out.End = b.End
	}
	return out
}

// Sort orders intervals by start, then end, open ends last.
func Sort(ivs []types.Interval) {
	slices.SortFunc(ivs, types.Interval.Compare)
}

// Dedup returns the sorted, duplicate-free intervals. The input slice is
// reused.
func Dedup(ivs []types.Interval) []types.Interval {
	Sort(ivs)
	return slices.CompactFunc(ivs, types.Interval.Equal)
}
