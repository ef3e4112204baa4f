// Package resilience provides the circuit breaker and bounded retry policy
// that shield the audio pipeline from a flapping or hung synthesis backend.
//
// Every external synthesis call runs inside a [Breaker] guarding the backend
// as a whole, and a [RetryPolicy] bounding the attempts (and per-attempt
// timeout) for one segment. A segment whose attempts are exhausted is
// skipped by the orchestrator; its index is consumed either way.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] when the breaker is open and the
// cool-down has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrCircuitOpen] until the cool-down
	// elapses.
	BreakerOpen

	// BreakerHalfOpen lets a single probe call through; success closes the
	// breaker, failure re-opens it.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker]. Zero fields take
// defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the consecutive-failure threshold that opens the
	// breaker. Default: 5.
	MaxFailures int

	// CoolDown is how long the breaker stays open before allowing a probe.
	// Default: 30s.
	CoolDown time.Duration
}

// Breaker is a three-state (closed / open / half-open) circuit breaker.
type Breaker struct {
	name        string
	maxFailures int
	coolDown    time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker creates a [Breaker] from cfg, applying defaults for zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		coolDown:    cfg.CoolDown,
	}
}

// Do runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn; after the cool-down a single probe is
// let through.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailure) < b.coolDown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probing = false
		slog.Info("circuit breaker half-open", "name", b.name)
		fallthrough
	case BreakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	inProbe := b.state == BreakerHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastFailure = time.Now()
		if inProbe {
			b.state = BreakerOpen
			b.failures = b.maxFailures
			slog.Warn("circuit breaker re-opened after failed probe", "name", b.name)
			return err
		}
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = BreakerOpen
			slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
		}
		return err
	}

	if inProbe {
		slog.Info("circuit breaker closed after successful probe", "name", b.name)
	}
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
	return nil
}

// State reports the breaker's current state. An open breaker whose cool-down
// has elapsed reports half-open; the transition itself happens on the next
// [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.coolDown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed, clearing all failure counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}
