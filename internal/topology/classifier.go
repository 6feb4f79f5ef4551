package topology

import (
	"net/netip"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Classifier maps a host address to the subnet it is grouped under: the most
// specific configured subnet containing the address, or else the subnet of the
// host's own prefix. Lookups are memoised.
type Classifier struct {
	known []netip.Prefix // most specific first
	lru   *expirable.LRU[netip.Prefix, netip.Prefix]
}

// NewClassifier returns a classifier over the configured subnets. size bounds
// the memo; ttl of zero keeps entries until evicted.
func NewClassifier(known []netip.Prefix, size int, ttl time.Duration) *Classifier {
	if size <= 0 {
		size = 4096
	}
	k := make([]netip.Prefix, 0, len(known))
	for _, p := range known {
		if p.IsValid() {
			k = append(k, p.Masked())
		}
	}
	slices.SortFunc(k, func(a, b netip.Prefix) int {
		if a.Bits() != b.Bits() {
			return b.Bits() - a.Bits()
		}
		return a.Addr().Compare(b.Addr())
	})
	return &Classifier{
		known: slices.Compact(k),
		lru:   expirable.NewLRU[netip.Prefix, netip.Prefix](size, nil, ttl),
	}
}

// Classify returns the subnet key for addr. The result always contains addr.
func (c *Classifier) Classify(addr netip.Prefix) netip.Prefix {
	if v, ok := c.lru.Get(addr); ok {
		return v
	}
	subnet := addr.Masked()
	for _, p := range c.known {
		if p.Contains(addr.Addr()) {
			subnet = p
			break
		}
	}
	c.lru.Add(addr, subnet)
	return subnet
}

// Len reports the number of memoised addresses.
func (c *Classifier) Len() int { return c.lru.Len() }
