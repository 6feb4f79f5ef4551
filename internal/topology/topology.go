package topology

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/gustycube/pingscope/internal/series"
	"github.com/gustycube/pingscope/internal/types"
)

// ErrMembership is returned when a host cannot join a network.
var ErrMembership = errors.New("host is not inside this network's subnet")

// Host is one monitored address.
type Host struct {
	Addr    netip.Prefix // address with prefix length, e.g. 10.20.30.1/16
	series  *series.Series
	network *Network
}

func NewHost(addr netip.Prefix) *Host {
	return &Host{Addr: addr, series: series.New()}
}

// Append records a ping result.
func (h *Host) Append(at time.Time, r types.Response) { h.series.Append(at, r) }

func (h *Host) Series() *series.Series { return h.series }

// Subnet is the network the host's own prefix describes.
func (h *Host) Subnet() netip.Prefix { return h.Addr.Masked() }

// Network returns the network the host is attached to, if any.
func (h *Host) Network() *Network { return h.network }

func (h *Host) String() string { return h.Addr.String() }

// Network is a subnet and the hosts attached to it, in attach order.
type Network struct {
	Subnet netip.Prefix
	hosts  []*Host
}

// NewNetwork returns an empty network. Host bits of subnet are cleared.
func NewNetwork(subnet netip.Prefix) *Network {
	return &Network{Subnet: subnet.Masked()}
}

// Contains reports whether h's address lies inside the subnet.
func (n *Network) Contains(h *Host) bool {
	return n.Subnet.Contains(h.Addr.Addr())
}

// Attach adds h to the network. Hosts outside the subnet and hosts already
// attached elsewhere are rejected and the network is left unchanged.
func (n *Network) Attach(h *Host) error {
	if !n.Contains(h) {
		return fmt.Errorf("attach %s to %s: %w", h, n.Subnet, ErrMembership)
	}
	if h.network != nil {
		return fmt.Errorf("attach %s to %s: already attached to %s: %w", h, n.Subnet, h.network.Subnet, ErrMembership)
	}
	h.network = n
	n.hosts = append(n.hosts, h)
	return nil
}

// Host looks up an attached host by address and prefix.
func (n *Network) Host(addr netip.Prefix) (*Host, bool) {
	for _, h := range n.hosts {
		if h.Addr == addr {
			return h, true
		}
	}
	return nil, false
}

// Hosts returns the attached hosts in attach order.
func (n *Network) Hosts() []*Host {
	out := make([]*Host, len(n.hosts))
	copy(out, n.hosts)
	return out
}

func (n *Network) Len() int { return len(n.hosts) }

// Series returns the series of every attached host in attach order.
func (n *Network) Series() []*series.Series {
	out := make([]*series.Series, len(n.hosts))
	for i, h := range n.hosts {
		out[i] = h.series
	}
	return out
}

func (n *Network) String() string { return n.Subnet.String() }
