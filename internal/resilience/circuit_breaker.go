// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resilience protects the backends from a client hammering them
// while they are down.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kenttv99/MM-sub001/internal/metrics"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	defaultThreshold = 5
	defaultReset     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after threshold consecutive counted failures and lets
// one trial call through once resetTimeout has passed. The trial's outcome closes
// or reopens the circuit.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// NewCircuitBreaker reports its state under name. Non-positive threshold or
// resetTimeout fall back to 5 failures and 30s.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = defaultReset
	}
	cb := &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(name, string(StateClosed))
	return cb
}

// Execute runs fn unless the circuit is open. An error for which counts
// returns false, such as a 4xx response, passes through and leaves the
// failure count alone. A nil counts counts every error.
func (cb *CircuitBreaker) Execute(fn func() error, counts func(error) bool) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err != nil && (counts == nil || counts(err)))
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.moveTo(StateHalfOpen)
	case StateClosed:
		return true
	}
	if cb.probing {
		return false
	}
	cb.probing = true
	return true
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if !failed {
		cb.failures = 0
		cb.moveTo(StateClosed)
		return
	}
	cb.failures++
	if cb.state != StateHalfOpen && cb.failures < cb.threshold {
		return
	}
	if cb.state != StateOpen {
		metrics.RecordCircuitBreakerTrip(cb.name)
	}
	cb.openedAt = cb.now()
	cb.moveTo(StateOpen)
}

// moveTo requires cb.mu.
func (cb *CircuitBreaker) moveTo(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	metrics.SetCircuitBreakerState(cb.name, string(s))
}

// Current reports the breaker state.
func (cb *CircuitBreaker) Current() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
