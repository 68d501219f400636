// Package breaker implements a simple closed/open/half-open circuit
// breaker, adapted from the upstream-routing circuit breaker pattern to
// drive credential cooling: repeated upstream failures against one
// credential trip the breaker, which the caller then uses to decide how
// long to cool that credential down via credential.Pool.SetCooling.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker's current state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a mutex-guarded circuit breaker. Zero value is not usable;
// construct with New.
type Breaker struct {
	mu               sync.RWMutex
	state            State
	failureThreshold int
	recoveryTimeout  time.Duration
	failureCount     int
	lastFailureTime  time.Time
	now              func() time.Time
}

// New builds a Breaker that opens after failureThreshold consecutive
// failures and attempts recovery (half-open) after recoveryTimeout.
func New(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call should be attempted. When the breaker is
// Open but the recovery timeout has elapsed, it transitions to HalfOpen
// and allows the call through; while HalfOpen every call is allowed until
// the next RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets the breaker to Closed with a zeroed failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
}

// RecordFailure increments the failure count and opens the breaker once
// the threshold is reached, or immediately on a failed half-open trial.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	if b.state == HalfOpen {
		b.state = Open
		return
	}

	if b.failureCount >= b.failureThreshold {
		b.state = Open
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker back to Closed with a zeroed failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
}
