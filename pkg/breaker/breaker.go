package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states §4.2 defines.
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
		return "half_open"
	default:
		return "unknown"
	}
}

// Config carries the thresholds §4.2 names as defaults.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultConfig returns §4.2's named defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
}

// Breaker is a single indexer's circuit breaker. It is safe for
// concurrent use, the same way pkg/health's Status tracks consecutive
// pass/fail counters under an external caller-held lock — Breaker
// instead owns its own mutex since callers span multiple goroutines
// (scheduler, health monitor, ad-hoc selector probes).
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// New creates a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call may proceed right now, advancing
// OPEN -> HALF_OPEN once recovery_timeout has elapsed since the
// breaker's last recorded failure (a failure while OPEN restarts the
// timeout). Only one probe call is allowed through per
// HALF_OPEN window; concurrent callers are refused until that probe
// resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.consecutiveFailures = 0
		b.probeInFlight = false
	case Closed:
		b.consecutiveFailures = 0
	}
}

// RecordFailure reports a failed call outcome, tripping CLOSED->OPEN
// once consecutive failures reach the threshold, and HALF_OPEN->OPEN
// unconditionally (the probe failed).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Open
		b.openedAt = time.Now()
		b.probeInFlight = false
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = time.Now()
		}
	case Open:
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current CLOSED-state failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// Reset forces the breaker back to CLOSED, used when the Indexer
// Health Monitor confirms recovery out-of-band (§4.3's recovery
// trigger: "reset the breaker and record a recovery event").
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.probeInFlight = false
}
