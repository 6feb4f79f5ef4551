// Package analysis runs the detectors over every host of a registry and
// aggregates network-wide downtime.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/gustycube/pingscope/internal/detect"
	"github.com/gustycube/pingscope/internal/metrics"
	"github.com/gustycube/pingscope/internal/telemetry"
	"github.com/gustycube/pingscope/internal/topology"
	"github.com/gustycube/pingscope/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HostResult is what the detectors found for one host.
type HostResult struct {
	Host     *topology.Host
	Downtime []types.Interval
	Overload []types.Interval
	// debounced downtime feeding the network intersection
	networkDowntime []types.Interval
	Err             error
}

// NetworkResult carries one network's hosts and their common downtime. Err is
// set when any host of the network failed; Downtime is then empty.
type NetworkResult struct {
	Network  *topology.Network
	Hosts    []HostResult
	Downtime []types.Interval
	Err      error
}

// Report is the outcome of one run, in registry order.
type Report struct {
	Params   Params
	Networks []NetworkResult
	Started  time.Time
	Finished time.Time
}

// Failed reports whether any host or network carries an error.
func (r *Report) Failed() bool {
	for _, n := range r.Networks {
		if n.Err != nil {
			return true
		}
	}
	return false
}

type Runner struct {
	log *zap.SugaredLogger
}

func NewRunner(log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{log: log}
}

// Run analyses every host of reg on at most p.Concurrency goroutines, then
// intersects each network's host downtime once all hosts are done. A failing
// host is recorded on its result and does not stop the others. The registry
// must not be modified during the run.
func (r *Runner) Run(ctx context.Context, reg *topology.Registry, p Params) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.Tracer().Start(ctx, "analysis.Run")
	defer span.End()

	rep := &Report{Params: p, Started: time.Now().UTC()}
	timer := time.Now()

	networks := reg.Networks()
	rep.Networks = make([]NetworkResult, len(networks))
	for i, nw := range networks {
		rep.Networks[i] = NetworkResult{Network: nw, Hosts: make([]HostResult, nw.Len())}
	}
	span.SetAttributes(
		attribute.Int("networks", len(networks)),
		attribute.Int("samples", reg.Samples()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for ni, nw := range networks {
		for hi, h := range nw.Hosts() {
			slot := &rep.Networks[ni].Hosts[hi]
			g.Go(func() error {
				*slot = r.analyseHost(gctx, h, p)
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	for i := range rep.Networks {
		r.aggregate(&rep.Networks[i])
	}

	rep.Finished = time.Now().UTC()
	metrics.RunDuration.Observe(time.Since(timer).Seconds())
	status := "ok"
	if rep.Failed() {
		status = "partial"
		span.SetStatus(codes.Error, "some hosts failed")
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()
	r.log.Infow("analysis finished",
		"networks", len(networks),
		"samples", reg.Samples(),
		"status", status,
		"elapsed", time.Since(timer),
	)
	return rep, nil
}

func (r *Runner) analyseHost(ctx context.Context, h *topology.Host, p Params) (res HostResult) {
	_, span := telemetry.Tracer().Start(ctx, "analysis.Host")
	defer span.End()
	span.SetAttributes(attribute.String("host", h.String()))

	res.Host = h
	defer func() {
		status := "ok"
		if res.Err != nil {
			status = "error"
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			r.log.Warnw("host analysis failed", "host", h.String(), "err", res.Err)
		}
		metrics.HostsTotal.WithLabelValues(status).Inc()
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	s := h.Series()
	var err error
	if p.HostDowntime {
		if res.Downtime, err = detect.Downtime(s, p.Debounce); err != nil {
			res.Err = fmt.Errorf("downtime: %w", err)
			return res
		}
		metrics.IntervalsTotal.WithLabelValues("downtime").Add(float64(len(res.Downtime)))
	}
	if p.HostOverload {
		if res.Overload, err = detect.Overload(s, p.OverloadWindow, p.OverloadThreshold); err != nil {
			res.Err = fmt.Errorf("overload: %w", err)
			return res
		}
		metrics.IntervalsTotal.WithLabelValues("overload").Add(float64(len(res.Overload)))
	}
	if p.HostDowntime && p.NetworkDebounce == p.Debounce {
		res.networkDowntime = res.Downtime
		return res
	}
	if res.networkDowntime, err = detect.Downtime(s, p.NetworkDebounce); err != nil {
		res.Err = fmt.Errorf("network downtime: %w", err)
	}
	return res
}

func (r *Runner) aggregate(n *NetworkResult) {
	perHost := make([][]types.Interval, len(n.Hosts))
	for i, h := range n.Hosts {
		if h.Err != nil {
			n.Err = fmt.Errorf("host %s: %w", h.Host, h.Err)
			return
		}
		perHost[i] = h.networkDowntime
	}
	n.Downtime = detect.Common(perHost)
	metrics.IntervalsTotal.WithLabelValues("switch down").Add(float64(len(n.Downtime)))
}
