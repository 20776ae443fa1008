package stability

import (
	"context"
	"errors"

	"github.com/dshills/orders-stability/stability/emit"
)

// FetchOrdersWithCircuitBreaker fetches the orders through the fetcher's
// circuit breaker.
//
// The breaker is created on first use with cfg; later calls with a different
// cfg reconfigure it without resetting its state. While the circuit is open
// (or a half-open trial is in flight) the call fails immediately with a
// CircuitOpenError, matching ErrCircuitOpen, and the endpoint is not
// contacted.
//
// Only failures the retry predicate accepts count against the breaker; a 404
// or a cancelled caller says nothing about endpoint health.
func (f *ReliableFetcher) FetchOrdersWithCircuitBreaker(ctx context.Context, cfg CircuitBreakerConfig) ([]Order, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := f.circuitBreaker(cfg)
	c := f.newCall(StrategyBreaker)

	trial, tr, err := b.allow()
	f.publishTransitions(c, tr)
	if err != nil {
		meta := map[string]interface{}{"state": b.currentState().String()}
		var coe *CircuitOpenError
		if errors.As(err, &coe) && coe.RetryAfter > 0 {
			meta["retry_after_ms"] = coe.RetryAfter.Milliseconds()
		}
		f.emit(c, emit.MsgCircuitRejected, meta)
		f.metrics.RecordRequest(c.strategy, "rejected")
		return nil, err
	}

	orders, err := f.attempt(ctx, c)

	result := outcomeSuccess
	if err != nil {
		result = outcomeIgnored
		if ctx.Err() == nil && f.retryable(err) {
			result = outcomeFailure
		}
	}
	f.publishTransitions(c, b.record(trial, result))

	return f.finish(c, orders, err)
}

// circuitBreaker returns the fetcher's breaker, creating or reconfiguring it.
func (f *ReliableFetcher) circuitBreaker(cfg CircuitBreakerConfig) *circuitBreaker {
	f.breakerMu.Lock()
	defer f.breakerMu.Unlock()

	if f.breaker == nil {
		f.breaker = newCircuitBreaker(cfg, f.now)
		return f.breaker
	}
	f.breaker.configure(cfg)
	return f.breaker
}

func (f *ReliableFetcher) publishTransitions(c *call, tr []transition) {
	for _, t := range tr {
		msg := emit.MsgCircuitClosed
		switch t.to {
		case StateOpen:
			msg = emit.MsgCircuitOpened
		case StateHalfOpen:
			msg = emit.MsgCircuitHalfOpen
		}
		f.emit(c, msg, map[string]interface{}{
			"from": t.from.String(),
			"to":   t.to.String(),
		})
		f.metrics.RecordTransition(t.from, t.to)
	}
}
