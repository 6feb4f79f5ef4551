package detect

import (
	"math"

	"github.com/gustycube/pingscope/internal/series"
	"github.com/gustycube/pingscope/internal/types"
)

// Overload returns the windows during which the trailing average response
// time over the last window samples was at or above threshold milliseconds.
//
// Timeouts are left out of the average. A frame whose newest sample timed out
// counts as overloaded, since it cannot yet be told apart from a short
// overload-induced timeout. Once a frame holds nothing but timeouts the host
// is down rather than overloaded: that sample is normal and the provisional
// overload marks that led into the outage are withdrawn.
func Overload(s *series.Series, window int, threshold float64) ([]types.Interval, error) {
	if window < 1 {
		return nil, invalidf("window size must be > 0 (got %d)", window)
	}
	if !(threshold > 0) || math.IsInf(threshold, 1) {
		return nil, invalidf("threshold must be > 0 (got %v)", threshold)
	}
	samples := s.Sorted()
	return windows(samples, classifyOverload(samples, window, threshold), 1), nil
}

// classifyOverload marks every overloaded sample index.
func classifyOverload(samples []types.Sample, window int, threshold float64) []bool {
	overloaded := make([]bool, len(samples))
	var marks []int // marked indices, oldest first
	// Start in blackout: nothing precedes the first sample to withdraw.
	blackout := true
	for i, cur := range samples {
		var sum float64
		var n int
		for _, smp := range samples[max(0, i-window+1) : i+1] {
			if ms, ok := smp.Response.Millis(); ok {
				sum += float64(ms)
				n++
			}
		}

		if n > 0 {
			blackout = false
			if sum/float64(n) >= threshold || cur.Response.IsTimeout() {
				overloaded[i] = true
				marks = append(marks, i)
			}
			continue
		}

		if blackout {
			continue
		}
		for k := min(window, i) - 1; k > 0 && len(marks) > 0; k-- {
			last := marks[len(marks)-1]
			overloaded[last] = false
			marks = marks[:len(marks)-1]
		}
		blackout = true
	}
	return overloaded
}
