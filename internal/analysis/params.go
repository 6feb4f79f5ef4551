package analysis

import (
	"fmt"
	"math"

	"github.com/gustycube/pingscope/internal/detect"
)

// Params tunes one analysis run.
type Params struct {
	// Debounce is the minimum run of timeouts reported as host downtime.
	Debounce int
	// OverloadWindow and OverloadThreshold drive the overload detector.
	OverloadWindow    int
	OverloadThreshold float64
	// NetworkDebounce is the per-host debounce used before intersecting a
	// network's downtime.
	NetworkDebounce int

	HostDowntime bool
	HostOverload bool

	// Concurrency bounds the number of hosts analysed at once.
	Concurrency int
}

// DefaultParams returns the defaults of the command line tool.
func DefaultParams() Params {
	return Params{
		Debounce:          1,
		OverloadWindow:    3,
		OverloadThreshold: 100,
		NetworkDebounce:   3,
		HostDowntime:      true,
		HostOverload:      true,
		Concurrency:       8,
	}
}

// WithHostDowntime toggles per-host downtime in the report.
func (p Params) WithHostDowntime(on bool) Params {
	p.HostDowntime = on
	return p
}

// WithHostOverload toggles per-host overload in the report.
func (p Params) WithHostOverload(on bool) Params {
	p.HostOverload = on
	return p
}

// Validate rejects parameters any detector would reject, so a run fails
// before any host is analysed.
func (p Params) Validate() error {
	switch {
	case p.Debounce < 1:
		return fmt.Errorf("%w: debounce must be > 0 (got %d)", detect.ErrInvalidArgument, p.Debounce)
	case p.NetworkDebounce < 1:
		return fmt.Errorf("%w: network debounce must be > 0 (got %d)", detect.ErrInvalidArgument, p.NetworkDebounce)
	case p.OverloadWindow < 1:
		return fmt.Errorf("%w: overload window must be > 0 (got %d)", detect.ErrInvalidArgument, p.OverloadWindow)
	case !(p.OverloadThreshold > 0) || math.IsInf(p.OverloadThreshold, 1):
		return fmt.Errorf("%w: overload threshold must be a positive number (got %v)", detect.ErrInvalidArgument, p.OverloadThreshold)
	case p.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be > 0 (got %d)", detect.ErrInvalidArgument, p.Concurrency)
	}
	return nil
}
