package stability

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/orders-stability/stability/emit"
)

// FetchOrdersWithTimeout fetches the orders but gives up after timeout.
//
// A timeout <= 0 disables the limit. When the limit is hit the in-flight
// request is cancelled and a TimeoutError (matching ErrTimeout) is returned.
// If ctx itself ends first, the failure is reported as is, not as a timeout.
func (f *ReliableFetcher) FetchOrdersWithTimeout(ctx context.Context, timeout time.Duration) ([]Order, error) {
	c := f.newCall(StrategyTimeout)

	if timeout <= 0 {
		orders, err := f.attempt(ctx, c)
		return f.finish(c, orders, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	orders, err := f.attempt(timeoutCtx, c)
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		f.emit(c, emit.MsgTimeout, map[string]interface{}{
			"timeout_ms": timeout.Milliseconds(),
			"error":      err.Error(),
		})
		f.metrics.IncrementTimeouts()
		f.metrics.RecordRequest(c.strategy, "timeout")
		return nil, &TimeoutError{Timeout: timeout, Err: err}
	}
	return f.finish(c, orders, err)
}

// finish records the outcome of a single-attempt call.
func (f *ReliableFetcher) finish(c *call, orders []Order, err error) ([]Order, error) {
	if err != nil {
		f.metrics.RecordRequest(c.strategy, "error")
		return nil, err
	}
	f.metrics.RecordRequest(c.strategy, "success")
	return orders, nil
}
