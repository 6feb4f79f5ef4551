package detect

import (
	"github.com/gustycube/pingscope/internal/interval"
	"github.com/gustycube/pingscope/internal/series"
	"github.com/gustycube/pingscope/internal/types"
)

// Members is a group of hosts sharing a subnet.
type Members interface {
	Series() []*series.Series
}

// NetworkDowntime returns the windows during which every host of the group was
// down at the same time, each host's downtime being debounced individually.
func NetworkDowntime(m Members, debounce int) ([]types.Interval, error) {
	if err := checkDebounce(debounce); err != nil {
		return nil, err
	}
	hosts := m.Series()
	perHost := make([][]types.Interval, len(hosts))
	for i, s := range hosts {
		down, err := Downtime(s, debounce)
		if err != nil {
			return nil, err
		}
		perHost[i] = down
	}
	return Common(perHost), nil
}

// Common intersects per-host downtime into whole-group windows.
//
// Every interval of every host seeds a candidate. The candidate is narrowed
// by the first overlapping interval of each other host in turn and dropped as
// soon as one host has none. Surviving candidates are deduplicated and sorted.
// Cost is O(hosts × intervals²) in the worst case.
func Common(perHost [][]types.Interval) []types.Interval {
	var out []types.Interval
	for seed, ivs := range perHost {
		for _, c := range ivs {
			if w, ok := narrow(c, seed, perHost); ok {
				out = append(out, w)
			}
		}
	}
	return interval.Dedup(out)
}

func narrow(c types.Interval, seed int, perHost [][]types.Interval) (types.Interval, bool) {
	for h, ivs := range perHost {
		if h == seed {
			continue
		}
		found := false
		for _, o := range ivs {
			if interval.Overlaps(c, o) {
				c = interval.Intersect(c, o)
				found = true
				break
			}
		}
		if !found {
			return c, false
		}
	}
	return c, true
}
