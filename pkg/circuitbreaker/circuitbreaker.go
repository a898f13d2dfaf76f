// Package circuitbreaker implements the Circuit Breaker pattern for fault
// tolerance. It protects the engine from hammering the Oqu platform API
// while it is failing. No external dependencies - uses only standard library.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed is the normal state - requests are allowed through.
	StateClosed State = iota
	// StateOpen is the failure state - requests are blocked.
	StateOpen
	// StateHalfOpen is the recovery state - limited probe requests allowed.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// Common errors.
var (
	// ErrCircuitOpen is returned when the circuit is open and requests are blocked.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is exhausted.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies this circuit breaker (for logging).
	Name string

	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open state
	// before closing the circuit.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long to stay open before probing in half-open.
	// Default: 30s
	OpenTimeout time.Duration

	// MaxHalfOpenRequests caps concurrent probes in half-open state.
	// Default: 1
	MaxHalfOpenRequests int

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from, to State)

	// IsFailure decides whether an error counts as a failure.
	// If nil, every non-nil error counts.
	IsFailure func(error) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Breaker is a circuit breaker instance.
type Breaker struct {
	config Config

	mu               sync.Mutex
	state            State
	failures         int
	halfOpenSuccess  int
	halfOpenInFlight int
	openedAt         time.Time
}

// New creates a new Breaker. Zero-valued config fields fall back to defaults.
func New(config Config) *Breaker {
	defaults := DefaultConfig(config.Name)
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}
	if config.MaxHalfOpenRequests <= 0 {
		config.MaxHalfOpenRequests = defaults.MaxHalfOpenRequests
	}
	return &Breaker{config: config, state: StateClosed}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// currentState resolves open->half-open expiry. Caller holds the mutex.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.config.OpenTimeout {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// Execute runs the operation through the breaker.
func (b *Breaker) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := operation(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.config.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		b.halfOpenInFlight++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	if failed && b.config.IsFailure != nil {
		failed = b.config.IsFailure(err)
	}

	switch b.state {
	case StateClosed:
		if failed {
			b.failures++
			if b.failures >= b.config.FailureThreshold {
				b.transition(StateOpen)
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		b.halfOpenInFlight--
		if failed {
			b.transition(StateOpen)
		} else {
			b.halfOpenSuccess++
			if b.halfOpenSuccess >= b.config.SuccessThreshold {
				b.transition(StateClosed)
			}
		}
	}
}

// transition changes state. Caller holds the mutex.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = time.Now()
		b.halfOpenSuccess = 0
	case StateClosed:
		b.failures = 0
		b.halfOpenSuccess = 0
	case StateHalfOpen:
		b.halfOpenSuccess = 0
		b.halfOpenInFlight = 0
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}
