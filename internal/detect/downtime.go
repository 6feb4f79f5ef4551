package detect

import (
	"github.com/gustycube/pingscope/internal/series"
	"github.com/gustycube/pingscope/internal/types"
)

// Downtime returns the windows during which the host did not answer. A run of
// consecutive timeouts is reported only when it holds at least debounce
// samples; the window closes at the next answered ping, or stays open when
// the series ends inside the run.
func Downtime(s *series.Series, debounce int) ([]types.Interval, error) {
	if err := checkDebounce(debounce); err != nil {
		return nil, err
	}
	samples := s.Sorted()
	timedOut := make([]bool, len(samples))
	for i, smp := range samples {
		timedOut[i] = smp.Response.IsTimeout()
	}
	return windows(samples, timedOut, debounce), nil
}
