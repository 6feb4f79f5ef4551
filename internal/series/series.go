package series

import (
	"slices"
	"time"

	"github.com/gustycube/pingscope/internal/types"
)

// Series holds the ping samples of one host keyed by timestamp. A later
// Append with the same timestamp replaces the earlier response.
type Series struct {
	m map[time.Time]types.Response
}

func New() *Series {
	return &Series{m: make(map[time.Time]types.Response)}
}

// Append records a sample.
func (s *Series) Append(at time.Time, r types.Response) {
	if s.m == nil {
		s.m = make(map[time.Time]types.Response)
	}
	// Normalise so the same instant in different zones is one key.
	s.m[at.UTC()] = r
}

func (s *Series) Len() int { return len(s.m) }

// Get returns the response recorded at t.
func (s *Series) Get(at time.Time) (types.Response, bool) {
	r, ok := s.m[at.UTC()]
	return r, ok
}

// HasTimeout reports whether any sample timed out.
func (s *Series) HasTimeout() bool {
	for _, r := range s.m {
		if r.IsTimeout() {
			return true
		}
	}
	return false
}

// Sorted returns the samples in ascending timestamp order. The series itself
// is not modified.
func (s *Series) Sorted() []types.Sample {
	out := make([]types.Sample, 0, len(s.m))
	for at, r := range s.m {
		out = append(out, types.Sample{At: at, Response: r})
	}
	slices.SortFunc(out, func(a, b types.Sample) int { return a.At.Compare(b.At) })
	return out
}

// Clone returns an independent copy.
func (s *Series) Clone() *Series {
	c := New()
	for at, r := range s.m {
		c.m[at] = r
	}
	return c
}
