package nllbserve

import (
	"sync"
	"time"
)

// Circuit breaker states.
const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half_open"
)

// breakerConfig holds the parameters for the endpoint circuit breaker.
type breakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxAttempts int
}

// circuitBreaker shields the pipeline from a translation endpoint that is
// down: after FailureThreshold consecutive failures calls fail fast until
// ResetTimeout elapses, then a half-open probe decides recovery.
type circuitBreaker struct {
	mu              sync.Mutex
	state           string
	failures        int
	successes       int
	lastFailureTime time.Time
	config          breakerConfig
}

func newCircuitBreaker(cfg breakerConfig) *circuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxAttempts <= 0 {
		cfg.HalfOpenMaxAttempts = 1
	}
	return &circuitBreaker{state: stateClosed, config: cfg}
}

// Allow reports whether a call may proceed.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.ResetTimeout {
			cb.state = stateHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case stateHalfOpen:
		return true
	}
	return false
}

// RecordSuccess notes a successful call.
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxAttempts {
			cb.state = stateClosed
			cb.failures = 0
		}
	case stateClosed:
		cb.failures = 0
	}
}

// RecordFailure notes a failed call.
func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == stateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = stateOpen
	}
}

// State returns the current state name.
func (cb *circuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
