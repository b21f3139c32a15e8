// Package circuitbreaker tracks consecutive transport faults per processor
// endpoint and fails calls fast while an endpoint is considered down.
// It never retries; a blocked call is reported as a fault like any other.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of an endpoint's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold         = 5
	defaultResetTimeout             = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 1
)

// Config tunes the breaker. Zero values fall back to defaults.
type Config struct {
	FailureThreshold         int           // Consecutive faults that open the circuit
	ResetTimeout             time.Duration // Time spent Open before probing (HalfOpen)
	HalfOpenSuccessThreshold int           // Successful probes needed to close again
}

type endpointState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// CircuitBreaker is safe for concurrent use; it is the only shared mutable
// state on the outbound path and is guarded by mu.
type CircuitBreaker struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState
	cfg       Config
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker, filling unset config fields with defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenSuccessThreshold <= 0 {
		cfg.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	return &CircuitBreaker{
		endpoints: make(map[string]*endpointState),
		cfg:       cfg,
		now:       time.Now,
	}
}

// getEndpointState assumes mu is held.
func (cb *CircuitBreaker) getEndpointState(endpoint string) *endpointState {
	es, ok := cb.endpoints[endpoint]
	if !ok {
		es = &endpointState{state: StateClosed}
		cb.endpoints[endpoint] = es
	}
	return es
}

// AllowRequest reports whether a call to endpoint may proceed. An Open circuit
// whose timeout has elapsed moves to HalfOpen and lets the probe through.
func (cb *CircuitBreaker) AllowRequest(endpoint string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateOpen:
		if cb.now().After(es.openUntil) {
			es.state = StateHalfOpen
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordFailure records a transport fault for endpoint.
func (cb *CircuitBreaker) RecordFailure(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateClosed:
		es.consecutiveFailures++
		if es.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.trip(es)
		}
	case StateHalfOpen:
		cb.trip(es)
	case StateOpen:
		// already open; openUntil is not extended
	}
}

func (cb *CircuitBreaker) trip(es *endpointState) {
	es.state = StateOpen
	es.consecutiveFailures = cb.cfg.FailureThreshold
	es.consecutiveSuccesses = 0
	es.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
}

// RecordSuccess records a completed round trip for endpoint.
func (cb *CircuitBreaker) RecordSuccess(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case StateClosed:
		es.consecutiveFailures = 0
	case StateHalfOpen:
		es.consecutiveSuccesses++
		if es.consecutiveSuccesses >= cb.cfg.HalfOpenSuccessThreshold {
			es.state = StateClosed
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
		}
	case StateOpen:
	}
}

// GetEndpointStatus returns the state and consecutive failure count without
// triggering the Open to HalfOpen transition.
func (cb *CircuitBreaker) GetEndpointStatus(endpoint string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	es, ok := cb.endpoints[endpoint]
	if !ok {
		return StateClosed, 0
	}
	return es.state, es.consecutiveFailures
}
