// Package resilience provides fault-tolerance primitives for remote calls.
//
// [Retry] wraps an operation in bounded exponential backoff with jitter; it
// is applied at the outermost transcription/summarization boundary, never per
// chunk, because regenerating a middle chunk without its neighbours' rolling
// context desynchronizes heading continuity. [CircuitBreaker] is a classic
// three-state breaker (closed → open → half-open) used by the watch loop so
// that a persistently failing backend is not hammered on every dropped file.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// rejecting calls: either the cooldown has not elapsed yet, or a probe is
// already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state — all calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to consecutive failures.
	// Calls are rejected immediately with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the cooldown. Probes run
	// one at a time; enough consecutive successes close the breaker, any
	// failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing the backend
	// again. Default: 30s.
	Cooldown time.Duration

	// ProbeSuccesses is the number of consecutive successful probes required
	// to close the breaker from half-open. Default: 2.
	ProbeSuccesses int
}

// CircuitBreaker guards the drop-folder handler: a lecture that fails because
// the transcription or summarization backend is down should pause dispatch
// for a cooldown instead of burning retry budget on every queued file.
//
// Probes in the half-open state are serialized — the watch loop processes one
// file at a time, so admitting a single probe and judging the backend by its
// outcome is both sufficient and cheap.
type CircuitBreaker struct {
	name           string
	maxFailures    int
	cooldown       time.Duration
	probeSuccesses int
	logger         *slog.Logger

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // when the breaker last tripped
	probeOK  int       // consecutive successful probes while half-open
	probing  bool      // a probe call is in flight
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied configuration.
// Zero-value config fields are replaced with sensible defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeSuccesses <= 0 {
		cfg.ProbeSuccesses = 2
	}
	return &CircuitBreaker{
		name:           cfg.Name,
		maxFailures:    cfg.MaxFailures,
		cooldown:       cfg.Cooldown,
		probeSuccesses: cfg.ProbeSuccesses,
		logger:         slog.Default().With("component", "breaker", "name", cfg.Name),
		state:          StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. In the half-open state exactly one
// probe call is admitted at a time.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probeOK = 0
		cb.probing = false
		cb.logger.Info("cooldown elapsed, probing backend")
	}

	isProbe := cb.state == StateHalfOpen
	if isProbe {
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if isProbe {
		cb.probing = false
	}
	if err != nil {
		cb.afterFailure(isProbe)
	} else {
		cb.afterSuccess(isProbe)
	}
	return err
}

// afterFailure handles failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) afterFailure(isProbe bool) {
	if isProbe {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("probe failed, re-opening")
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("opening after consecutive failures",
			"failures", cb.failures)
	}
}

// afterSuccess handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) afterSuccess(isProbe bool) {
	if !isProbe {
		cb.failures = 0
		return
	}

	cb.probeOK++
	if cb.probeOK >= cb.probeSuccesses {
		cb.state = StateClosed
		cb.failures = 0
		cb.probeOK = 0
		cb.logger.Info("closed after successful probes",
			"probes", cb.probeSuccesses)
	}
}

// State returns the current [State] of the breaker. If the breaker is open and
// the cooldown has elapsed, the returned state is [StateHalfOpen] (the actual
// transition happens on the next [Execute] call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probeOK = 0
	cb.probing = false
	cb.logger.Info("manually reset")
}
