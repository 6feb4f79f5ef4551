// Package rate paces deliveries per sink with token buckets.
package rate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// PerSink hands out one token bucket per sink name. The set of sinks is
// small and fixed for a process, so buckets are never evicted.
type PerSink struct {
	mu        sync.Mutex
	m         map[string]*rate.Limiter
	perSecond float64
	burst     int
}

func New(perSecond float64, burst int) *PerSink {
	if burst < 1 {
		burst = 1
	}
	return &PerSink{m: make(map[string]*rate.Limiter), perSecond: perSecond, burst: burst}
}

func (p *PerSink) limiter(sink string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.m[sink]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.perSecond), p.burst)
		p.m[sink] = l
	}
	return l
}

// Wait blocks until sink may deliver again or ctx is done.
func (p *PerSink) Wait(ctx context.Context, sink string) error {
	return p.limiter(sink).Wait(ctx)
}
