package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Calls fail immediately
	StateHalfOpen                     // A single trial call is allowed
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// StateChangeFunc is invoked (outside the breaker lock) whenever the state changes
type StateChangeFunc func(name string, state CircuitState)

// CircuitBreaker stops repeated attempts against a service that keeps failing.
// After maxFailures consecutive failures the circuit opens; once resetTimeout
// has elapsed one trial call is let through, and its outcome closes or reopens it.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	onChange     StateChangeFunc
	now          func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failureCount  int
	lastFailTime  time.Time
	trialInFlight bool

	requestCount      int64
	failureCountTotal int64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

// OnStateChange registers a callback for state transitions
func (cb *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call executes fn with circuit breaker protection
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := fn()
	cb.RecordResult(err == nil)
	return err
}

// Allow reports whether a call may proceed. Every nil return must be
// followed by exactly one RecordResult.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return nil

	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trialInFlight = true
		notify := cb.onChange
		cb.mu.Unlock()
		if notify != nil {
			notify(cb.name, StateHalfOpen)
		}
		return nil

	case StateHalfOpen:
		if cb.trialInFlight {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		cb.mu.Unlock()
		return nil
	}

	cb.mu.Unlock()
	return ErrCircuitOpen
}

// RecordResult records the outcome of an allowed call
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()

	before := cb.state
	cb.requestCount++
	cb.trialInFlight = false

	if success {
		cb.failureCount = 0
		cb.state = StateClosed
	} else {
		cb.failureCountTotal++
		cb.lastFailTime = cb.now()
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	}

	after := cb.state
	notify := cb.onChange
	cb.mu.Unlock()

	if after != before && notify != nil {
		notify(cb.name, after)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() (state CircuitState, requestCount, failureCount int64, failureRate float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state = cb.state
	requestCount = cb.requestCount
	failureCount = cb.failureCountTotal

	if requestCount > 0 {
		failureRate = float64(failureCount) / float64(requestCount) * 100.0
	}

	return
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.trialInFlight = false
	notify := cb.onChange
	cb.mu.Unlock()

	if notify != nil {
		notify(cb.name, StateClosed)
	}
}
