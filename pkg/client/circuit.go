package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var circuitTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rv_circuit_transitions_total",
	Help: "Total circuit breaker state transitions by endpoint and new state",
}, []string{"endpoint", "to"})

// CircuitState enumerates the breaker states.
type CircuitState int

const (
	// CircuitClosed lets calls through and counts terminal failures.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects calls until the cooldown elapses.
	CircuitOpen

	// CircuitHalfOpen admits exactly one probe call after the cooldown.
	CircuitHalfOpen
)

// String returns the state name for logging and metrics labels.
func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive terminal failures
	// that opens the circuit.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before admitting a
	// probe call.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns safe breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a per-endpoint circuit breaker. Only terminal failures count
// towards the threshold: a call that recovers within its retry budget never
// trips the circuit.
type Breaker struct {
	endpoint string
	config   BreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	openedAt     time.Time
	probing      bool
}

func newBreaker(endpoint string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{endpoint: endpoint, config: cfg}
}

// Allow decides whether a call attempt may proceed. In the open state it
// fails fast until the cooldown elapses, then transitions to half-open and
// admits a single probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return fmt.Errorf("%w: endpoint %s cooling down", ErrCircuitOpen, b.endpoint)
		}
		b.transition(CircuitHalfOpen)
		b.probing = true
		return nil

	default: // CircuitHalfOpen
		if b.probing {
			return fmt.Errorf("%w: endpoint %s probe in flight", ErrCircuitOpen, b.endpoint)
		}
		b.probing = true
		return nil
	}
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitClosed {
		b.transition(CircuitClosed)
	}
	b.failureCount = 0
	b.probing = false
}

// RecordFailure counts a terminal failure. A failed half-open probe reopens
// the circuit immediately; in the closed state the circuit opens once the
// threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.probing = false

	if b.state == CircuitHalfOpen || b.failureCount >= b.config.FailureThreshold {
		b.transition(CircuitOpen)
		b.openedAt = time.Now()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to CircuitState) {
	b.state = to
	circuitTransitions.WithLabelValues(b.endpoint, to.String()).Inc()
}
