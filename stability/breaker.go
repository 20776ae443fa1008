package stability

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// StateClosed lets every request through and counts consecutive failures.
	StateClosed BreakerState = iota

	// StateHalfOpen lets a single trial request through to test recovery.
	StateHalfOpen

	// StateOpen rejects requests without contacting the endpoint.
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("BreakerState(%d)", int(s))
	}
}

// CircuitBreakerConfig configures FetchOrdersWithCircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Must be >= 1.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before a trial request
	// is allowed through. Must be > 0.
	OpenTimeout time.Duration
}

// Validate reports whether the configuration can be used. The returned error
// matches ErrInvalidBreakerConfig.
func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure threshold %d must be >= 1", ErrInvalidBreakerConfig, c.FailureThreshold)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("%w: open timeout %v must be > 0", ErrInvalidBreakerConfig, c.OpenTimeout)
	}
	return nil
}

// outcome classifies a finished request for the breaker.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	// outcomeIgnored is a failure that says nothing about endpoint health,
	// such as a 404 or a caller cancellation.
	outcomeIgnored
)

type transition struct {
	from, to BreakerState
}

// circuitBreaker is a consecutive-failure breaker.
//
//	closed --threshold failures--> open --OpenTimeout--> half-open
//	half-open --trial success--> closed
//	half-open --trial failure--> open
//
// While half-open only one trial is in flight; other callers are rejected.
// Transitions are returned to the caller instead of being published under
// the lock.
type circuitBreaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	state    BreakerState
	failures int
	openedAt time.Time
	inTrial  bool
	now      func() time.Time
}

func newCircuitBreaker(cfg CircuitBreakerConfig, now func() time.Time) *circuitBreaker {
	if now == nil {
		now = time.Now
	}
	return &circuitBreaker{cfg: cfg, state: StateClosed, now: now}
}

// configure replaces the configuration without resetting state.
func (b *circuitBreaker) configure(cfg CircuitBreakerConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

func (b *circuitBreaker) currentState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// allow decides whether a request may proceed. trial is true when the
// request is the single half-open trial; its result must be reported with
// trial set.
func (b *circuitBreaker) allow() (trial bool, tr []transition, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cfg.OpenTimeout {
			return false, nil, &CircuitOpenError{State: StateOpen, RetryAfter: b.cfg.OpenTimeout - elapsed}
		}
		tr = append(tr, b.moveTo(StateHalfOpen))
		b.inTrial = true
		return true, tr, nil
	case StateHalfOpen:
		if b.inTrial {
			return false, nil, &CircuitOpenError{State: StateHalfOpen}
		}
		b.inTrial = true
		return true, nil, nil
	default:
		return false, nil, nil
	}
}

// record reports the result of a request admitted by allow.
//
// Results of requests that started in an earlier state (a slow request
// admitted while closed that finishes after the circuit opened) are ignored.
func (b *circuitBreaker) record(trial bool, result outcome) []transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	var tr []transition
	if trial {
		b.inTrial = false
	}

	switch result {
	case outcomeSuccess:
		switch {
		case b.state == StateClosed:
			b.failures = 0
		case b.state == StateHalfOpen && trial:
			tr = append(tr, b.moveTo(StateClosed))
		}
	case outcomeFailure:
		switch {
		case b.state == StateClosed:
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				tr = append(tr, b.moveTo(StateOpen))
			}
		case b.state == StateHalfOpen && trial:
			tr = append(tr, b.moveTo(StateOpen))
		}
	}
	return tr
}

// moveTo changes state and resets per-state bookkeeping. Callers hold mu.
func (b *circuitBreaker) moveTo(to BreakerState) transition {
	from := b.state
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.failures = 0
	case StateClosed:
		b.failures = 0
	}
	return transition{from: from, to: to}
}
