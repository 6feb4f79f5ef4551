package detect

import (
	"testing"
	"time"

	"github.com/gustycube/pingscope/internal/series"
	"github.com/gustycube/pingscope/internal/types"
)

// baseTime is a fixed reference point so all timings are deterministic.
var baseTime = time.Date(2020, 10, 19, 13, 31, 0, 0, time.UTC)

// sec returns baseTime advanced by n seconds.
func sec(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Second)
}

// T marks a timeout in seriesOf inputs.
const T = -1

// seriesOf builds a series with one sample per second starting at sec(first).
func seriesOf(first int, responses ...int) *series.Series {
	s := series.New()
	for i, r := range responses {
		if r == T {
			s.Append(sec(first+i), types.Timeout)
		} else {
			s.Append(sec(first+i), types.OK(int64(r)))
		}
	}
	return s
}

func closed(s, e int) types.Interval { return types.Interval{Start: sec(s), End: types.At(sec(e))} }
func open(s int) types.Interval      { return types.Interval{Start: sec(s), End: types.Open()} }

func assertIntervals(t *testing.T, got, want []types.Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("interval[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

type group []*series.Series

func (g group) Series() []*series.Series { return g }
