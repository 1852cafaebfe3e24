// Package circuitbreaker implements a three-state circuit breaker.
// It keeps a failing external dependency from dragging the rest of the
// system down: after a run of failures the circuit opens and calls fail
// fast until a probe succeeds. Stdlib only.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the circuit position.
type State int

const (
	// StateClosed passes requests through.
	StateClosed State = iota
	// StateOpen rejects requests immediately.
	StateOpen
	// StateHalfOpen lets a limited number of probe requests through.
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
	// ErrCircuitOpen is returned while the circuit rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreaker tracks consecutive failures of a named dependency.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	halfOpenMax      int
	onStateChange    func(name string, from, to State)

	mu              sync.Mutex
	state           State
	consecFailures  int
	consecSuccesses int
	lastFailureAt   time.Time
	halfOpenInUse   int
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the circuit.
func WithSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.successThreshold = n
		}
	}
}

// WithTimeout sets how long the circuit stays open before probing.
func WithTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.openTimeout = d
		}
	}
}

// WithMaxHalfOpenRequests sets the probe budget in half-open state.
func WithMaxHalfOpenRequests(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMax = n
		}
	}
}

// WithOnStateChange installs a transition callback, usually for logging.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// New creates a CircuitBreaker. Without options: 5 failures to open,
// 2 successes to close, 30s open timeout, 1 half-open probe.
func New(name string, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		openTimeout:      30 * time.Second,
		halfOpenMax:      1,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn if the circuit allows it and records the outcome.
// When the circuit is open the fn is never called and ErrCircuitOpen
// is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// admit decides whether the next request may proceed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailureAt) >= cb.openTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenInUse = 1
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInUse < cb.halfOpenMax {
			cb.halfOpenInUse++
			return nil
		}
		return ErrTooManyRequests
	default:
		return ErrCircuitOpen
	}
}

// record feeds the request outcome back into the state machine.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecSuccesses++
		cb.consecFailures = 0
		if cb.state == StateHalfOpen && cb.consecSuccesses >= cb.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.consecFailures++
	cb.consecSuccesses = 0
	cb.lastFailureAt = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.consecFailures >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens the circuit immediately.
		cb.transition(StateOpen)
	}
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.consecSuccesses = 0
	cb.consecFailures = 0
	cb.halfOpenInUse = 0

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current circuit position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecFailures = 0
	cb.consecSuccesses = 0
	cb.halfOpenInUse = 0
}

// LessonsAPIBreaker returns a circuit breaker for the external lesson
// generator. The generator is slow to recover, so the open timeout is
// generous and only one probe is allowed at a time.
func LessonsAPIBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"lessons-api",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithTimeout(60*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}
