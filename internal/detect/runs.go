package detect

import "github.com/gustycube/pingscope/internal/types"

// span is a half-open range [lo, hi) of sorted sample indices.
type span struct{ lo, hi int }

func (s span) len() int { return s.hi - s.lo }

// markedRuns returns the maximal runs of consecutive marked indices.
func markedRuns(marked []bool) []span {
	var out []span
	for i := 0; i < len(marked); {
		if !marked[i] {
			i++
			continue
		}
		j := i
		for j < len(marked) && marked[j] {
			j++
		}
		out = append(out, span{i, j})
		i = j
	}
	return out
}

// clearStarts returns the first index of every run of unmarked indices.
func clearStarts(marked []bool) []int {
	var out []int
	for i, m := range marked {
		if !m && (i == 0 || marked[i-1]) {
			out = append(out, i)
		}
	}
	return out
}

// windows turns every marked run of at least minLen samples into an interval.
// Each interval ends at the first unmarked sample after the run began, or is
// open when none exists. Recovery points are consumed by an advance-only
// index so no point closes two windows.
func windows(samples []types.Sample, marked []bool, minLen int) []types.Interval {
	recovery := clearStarts(marked)
	var out []types.Interval
	next := 0
	for _, run := range markedRuns(marked) {
		if run.len() < minLen {
			continue
		}
		for next < len(recovery) && recovery[next] < run.lo {
			next++
		}
		iv := types.Interval{Start: samples[run.lo].At, End: types.Open()}
		if next < len(recovery) {
			iv.End = types.At(samples[recovery[next]].At)
			next++
		}
		out = append(out, iv)
	}
	return out
}
