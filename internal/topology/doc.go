// Package topology groups hosts into networks.
//
// A Host is identified by its address together with its prefix length and owns
// the ping series of that address. A Network is a subnet holding the hosts
// whose address it contains. The Registry replays parsed log records into
// networks and hosts in first-seen order; the Classifier decides which subnet a
// host address belongs to.
package topology
