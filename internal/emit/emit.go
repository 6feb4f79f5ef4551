// Package emit publishes report events to one or more sinks. Deliveries are
// retried with exponential backoff behind a per-sink circuit breaker and rate
// limit; batches that still fail are spooled to disk and re-sent by Drain.
package emit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gustycube/pingscope/internal/circuitbreaker"
	"github.com/gustycube/pingscope/internal/dedup"
	"github.com/gustycube/pingscope/internal/httpclient"
	"github.com/gustycube/pingscope/internal/metrics"
	"github.com/gustycube/pingscope/internal/rate"
	"github.com/gustycube/pingscope/internal/report"
	"go.uber.org/zap"
)

type Batch struct {
	RunID  string         `json:"run_id"`
	Events []report.Event `json:"events"`
}

type Options struct {
	RunID      string
	BatchMax   int
	FlushEvery time.Duration
	SpoolDir   string
	// RetryInitial and MaxElapsed bound the backoff of one delivery.
	RetryInitial time.Duration
	MaxElapsed   time.Duration
	RatePerSec   float64
	// Dedup drops events already published; nil publishes everything.
	Dedup   dedup.Interface
	Breaker circuitbreaker.Config
}

func (o *Options) setDefaults() {
	if o.BatchMax <= 0 {
		o.BatchMax = 500
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 2 * time.Second
	}
	if o.SpoolDir == "" {
		o.SpoolDir = "spool"
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = 500 * time.Millisecond
	}
	if o.MaxElapsed <= 0 {
		o.MaxElapsed = 30 * time.Second
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 10
	}
	if o.Breaker.Threshold == 0 {
		o.Breaker = circuitbreaker.DefaultConfig()
	}
}

type Emitter struct {
	opts     Options
	sinks    []Sink
	byName   map[string]Sink
	breakers *circuitbreaker.Set
	limiter  *rate.PerSink
	log      *zap.SugaredLogger

	mu  sync.Mutex
	acc []report.Event
}

func NewEmitter(opts Options, log *zap.SugaredLogger, sinks ...Sink) (*Emitter, error) {
	if len(sinks) == 0 {
		return nil, errors.New("emit: no sinks")
	}
	opts.setDefaults()
	if err := os.MkdirAll(opts.SpoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	e := &Emitter{
		opts:    opts,
		sinks:   sinks,
		byName:  make(map[string]Sink, len(sinks)),
		limiter: rate.New(opts.RatePerSec, 1),
		log:     log,
	}
	for _, s := range sinks {
		if _, dup := e.byName[s.Name()]; dup {
			return nil, fmt.Errorf("emit: duplicate sink %q", s.Name())
		}
		e.byName[s.Name()] = s
	}
	cfg := opts.Breaker
	user := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		open := 0.0
		if to != circuitbreaker.StateClosed {
			open = 1
		}
		metrics.SinkBreakerOpen.WithLabelValues(name).Set(open)
		log.Warnw("sink breaker changed state", "sink", name, "from", from.String(), "to", to.String())
		if user != nil {
			user(name, from, to)
		}
	}
	e.breakers = circuitbreaker.NewSet(cfg)
	return e, nil
}

// Publish delivers events not seen before to every sink, BatchMax events at
// a time. A batch a sink cannot take is spooled; only a failed spool is an
// error.
func (e *Emitter) Publish(ctx context.Context, events []report.Event) error {
	fresh := events[:0:0]
	for _, ev := range events {
		if e.opts.Dedup != nil && e.opts.Dedup.Seen(ev.Key()) {
			continue
		}
		fresh = append(fresh, ev)
	}
	var errs []error
	for start := 0; start < len(fresh); start += e.opts.BatchMax {
		b := Batch{RunID: e.opts.RunID, Events: fresh[start:min(start+e.opts.BatchMax, len(fresh))]}
		for _, s := range e.sinks {
			if err := e.deliver(ctx, s, b); err != nil {
				e.log.Warnw("publish failed, spooling", "sink", s.Name(), "events", len(b.Events), "status", httpclient.StatusCode(err), "err", err)
				if serr := e.spool(s.Name(), b); serr != nil {
					errs = append(errs, serr)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Emitter) deliver(ctx context.Context, s Sink, b Batch) error {
	if err := e.limiter.Wait(ctx, s.Name()); err != nil {
		metrics.EmitBatches.WithLabelValues("failed").Inc()
		return err
	}
	err := e.breakers.Execute(s.Name(), func() error {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = e.opts.RetryInitial
		bo.MaxElapsedTime = e.opts.MaxElapsed
		return backoff.Retry(func() error { return s.Publish(ctx, b) }, backoff.WithContext(bo, ctx))
	})
	status := "ok"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		status = "rejected"
	case err != nil:
		status = "failed"
	}
	metrics.EmitBatches.WithLabelValues(status).Inc()
	return err
}

// Run accumulates events from in and publishes them every FlushEvery or once
// BatchMax events are waiting. Closing in flushes what is left; cancelling ctx
// spools it.
func (e *Emitter) Run(ctx context.Context, in <-chan []report.Event) {
	t := time.NewTimer(e.opts.FlushEvery)
	defer t.Stop()
	for {
		select {
		case evs, ok := <-in:
			if !ok {
				e.flush(ctx)
				return
			}
			e.mu.Lock()
			e.acc = append(e.acc, evs...)
			full := len(e.acc) >= e.opts.BatchMax
			e.mu.Unlock()
			if full {
				e.flush(ctx)
				if !t.Stop() {
					select {
					case <-t.C:
					default:
					}
				}
				t.Reset(e.opts.FlushEvery)
			}
		case <-t.C:
			e.flush(ctx)
			t.Reset(e.opts.FlushEvery)
		case <-ctx.Done():
			e.mu.Lock()
			pending := e.acc
			e.acc = nil
			e.mu.Unlock()
			if len(pending) > 0 {
				for _, s := range e.sinks {
					if err := e.spool(s.Name(), Batch{RunID: e.opts.RunID, Events: pending}); err != nil {
						e.log.Errorw("spool on shutdown", "sink", s.Name(), "err", err)
					}
				}
			}
			return
		}
	}
}

func (e *Emitter) flush(ctx context.Context) {
	e.mu.Lock()
	pending := e.acc
	e.acc = nil
	e.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	if err := e.Publish(ctx, pending); err != nil {
		e.log.Errorw("flush failed", "err", err)
	}
}

func (e *Emitter) spool(sink string, b Batch) error {
	name := sink + "-" + time.Now().UTC().Format("20060102T150405.000000000") + ".json"
	f, err := os.Create(filepath.Join(e.opts.SpoolDir, name))
	if err != nil {
		return fmt.Errorf("spool create: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("spool write: %w", err)
	}
	return nil
}

// Drain re-sends spooled batches to the sink they failed on and removes the
// ones that get through. Files for sinks this emitter does not have are left
// alone.
func (e *Emitter) Drain(ctx context.Context) error {
	e.flush(ctx)
	entries, err := os.ReadDir(e.opts.SpoolDir)
	if err != nil {
		return fmt.Errorf("read spool: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		sinkName, _, ok := strings.Cut(ent.Name(), "-")
		s, known := e.byName[sinkName]
		if !ok || !known {
			continue
		}
		p := filepath.Join(e.opts.SpoolDir, ent.Name())
		b, err := readSpooled(p)
		if err != nil {
			e.log.Warnw("unreadable spool file", "path", p, "err", err)
			continue
		}
		if err := e.deliver(ctx, s, b); err != nil {
			e.log.Warnw("spooled batch still failing", "path", p, "err", err)
			continue
		}
		_ = os.Remove(p)
	}
	return ctx.Err()
}

func readSpooled(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer f.Close()
	var b Batch
	err = json.NewDecoder(f).Decode(&b)
	return b, err
}

// Pending counts spooled batches.
func (e *Emitter) Pending() (int, error) {
	entries, err := os.ReadDir(e.opts.SpoolDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".json") {
			n++
		}
	}
	return n, nil
}
