package topology

import (
	"fmt"
	"net/netip"

	"github.com/gustycube/pingscope/internal/types"
)

// Registry holds the networks and hosts built from replayed log records.
// It is append-only and must not be modified while detectors run.
type Registry struct {
	classifier *Classifier
	networks   []*Network
	bySubnet   map[netip.Prefix]*Network
	samples    int
}

// NewRegistry returns an empty registry. A nil classifier groups every host
// under its own prefix.
func NewRegistry(c *Classifier) *Registry {
	if c == nil {
		c = NewClassifier(nil, 0, 0)
	}
	return &Registry{classifier: c, bySubnet: make(map[netip.Prefix]*Network)}
}

// Add replays one record: the network and host are created on first sight and
// the sample is appended to the host's series.
func (r *Registry) Add(rec types.Record) error {
	if !rec.Addr.IsValid() {
		return fmt.Errorf("add record: invalid address %v", rec.Addr)
	}
	subnet := r.classifier.Classify(rec.Addr)
	nw, ok := r.bySubnet[subnet]
	if !ok {
		nw = NewNetwork(subnet)
		r.bySubnet[subnet] = nw
		r.networks = append(r.networks, nw)
	}
	h, ok := nw.Host(rec.Addr)
	if !ok {
		h = NewHost(rec.Addr)
		if err := nw.Attach(h); err != nil {
			return err
		}
	}
	h.Append(rec.At, rec.Response)
	r.samples++
	return nil
}

// AddAll replays records in order and stops at the first error.
func (r *Registry) AddAll(recs []types.Record) error {
	for _, rec := range recs {
		if err := r.Add(rec); err != nil {
			return err
		}
	}
	return nil
}

// Networks returns the networks in first-seen order.
func (r *Registry) Networks() []*Network {
	out := make([]*Network, len(r.networks))
	copy(out, r.networks)
	return out
}

// Hosts returns every host, grouped by network in first-seen order.
func (r *Registry) Hosts() []*Host {
	var out []*Host
	for _, nw := range r.networks {
		out = append(out, nw.hosts...)
	}
	return out
}

// Samples is the number of records replayed, overwritten ones included.
func (r *Registry) Samples() int { return r.samples }

// Clone returns a deep copy, so records loaded into the copy never reach the
// original.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		classifier: r.classifier,
		bySubnet:   make(map[netip.Prefix]*Network, len(r.bySubnet)),
		samples:    r.samples,
	}
	for _, nw := range r.networks {
		cn := NewNetwork(nw.Subnet)
		for _, h := range nw.hosts {
			ch := &Host{Addr: h.Addr, series: h.series.Clone(), network: cn}
			cn.hosts = append(cn.hosts, ch)
		}
		c.networks = append(c.networks, cn)
		c.bySubnet[cn.Subnet] = cn
	}
	return c
}
