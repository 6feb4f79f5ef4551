// Package circuitbreaker stops hammering a failing event sink.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrOpenState       = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration
type Config struct {
	// MaxRequests is the number of trial deliveries let through while
	// half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// Threshold is the minimum number of results before the failure ratio
	// is evaluated, and the number of half-open successes that close it.
	Threshold    uint32
	FailureRatio float64

	// OnStateChange is called with the breaker's name on every transition,
	// under the breaker's lock.
	OnStateChange func(name string, from, to State)
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		Threshold:    3,
		FailureRatio: 0.5,
	}
}

// Breaker guards one sink.
type Breaker struct {
	name   string
	config Config

	mu       sync.Mutex
	state    State
	expiry   time.Time
	inflight uint32
	total    uint32
	failures uint32
	now      func() time.Time
}

func New(name string, config Config) *Breaker {
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Threshold == 0 {
		config.Threshold = 1
	}
	b := &Breaker{name: name, config: config, now: time.Now}
	b.expiry = b.now().Add(config.Interval)
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(b.now())
}

// Execute runs fn unless the breaker is open. fn's error is returned as is.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current(b.now()) {
	case StateOpen:
		return ErrOpenState
	case StateHalfOpen:
		if b.inflight >= b.config.MaxRequests {
			return ErrTooManyRequests
		}
	}
	b.inflight++
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.inflight > 0 {
		b.inflight--
	}
	switch b.current(now) {
	case StateClosed:
		b.total++
		if !success {
			b.failures++
		}
		if b.total >= b.config.Threshold &&
			float64(b.failures)/float64(b.total) >= b.config.FailureRatio {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !success {
			b.transition(StateOpen, now)
			return
		}
		b.total++
		if b.total >= b.config.Threshold {
			b.transition(StateClosed, now)
		}
	}
}

// current advances time-based transitions and returns the state.
func (b *Breaker) current(now time.Time) State {
	switch b.state {
	case StateClosed:
		if b.expiry.Before(now) {
			b.reset(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to
	b.reset(now)
	if b.config.OnStateChange != nil && from != to {
		b.config.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) reset(now time.Time) {
	b.total, b.failures = 0, 0
	switch b.state {
	case StateClosed:
		b.expiry = now.Add(b.config.Interval)
	case StateOpen:
		b.expiry = now.Add(b.config.Timeout)
	default:
		b.expiry = time.Time{}
	}
}

// Set keeps one breaker per sink name.
type Set struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
}

func NewSet(config Config) *Set {
	return &Set{breakers: make(map[string]*Breaker), config: config}
}

func (s *Set) Get(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[name]
	if !ok {
		b = New(name, s.config)
		s.breakers[name] = b
	}
	return b
}

func (s *Set) Execute(name string, fn func() error) error {
	return s.Get(name).Execute(fn)
}
