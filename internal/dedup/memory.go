// Package dedup remembers which event keys were already published.
package dedup

import "sync"

// Interface reports whether key was seen before and marks it seen.
type Interface interface {
	Seen(key string) bool
}

type Memory struct{ m sync.Map }

func NewMemory() *Memory { return &Memory{} }

func (d *Memory) Seen(key string) bool {
	_, ok := d.m.LoadOrStore(key, struct{}{})
	return ok
}
