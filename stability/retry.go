package stability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/orders-stability/stability/emit"
)

// FetchOrdersWithRetries fetches the orders, repeating retryable failures up
// to maxRetries times with the waits described by backoff.
//
// Errors:
//   - ErrInvalidBackoff for a negative maxRetries or an invalid backoff.
//   - A non-retryable failure is returned as soon as it happens.
//   - A MaxRetriesError (matching ErrMaxRetries) once every attempt failed;
//     it unwraps to the last attempt's error.
//   - The context error if ctx ends while waiting between attempts.
func (f *ReliableFetcher) FetchOrdersWithRetries(ctx context.Context, maxRetries int, backoff BackoffConfig) ([]Order, error) {
	if maxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries %d is negative", ErrInvalidBackoff, maxRetries)
	}
	if err := backoff.Validate(); err != nil {
		return nil, err
	}

	c := f.newCall(StrategyRetry)
	var lastErr error
	for retry := 0; retry <= maxRetries; retry++ {
		if retry > 0 {
			delay := f.backoffDelay(backoff, retry-1)
			reason := retryReason(lastErr)
			f.emit(c, emit.MsgRetryScheduled, map[string]interface{}{
				"delay_ms": delay.Milliseconds(),
				"reason":   reason,
			})
			f.metrics.IncrementRetries(reason)
			if err := sleepCtx(ctx, delay); err != nil {
				f.metrics.RecordRequest(c.strategy, "error")
				return nil, err
			}
		}

		orders, err := f.attempt(ctx, c)
		if err == nil {
			f.metrics.RecordRequest(c.strategy, "success")
			return orders, nil
		}
		lastErr = err
		if !f.retryable(err) {
			f.metrics.RecordRequest(c.strategy, "error")
			return nil, err
		}
	}

	f.emit(c, emit.MsgRetryExhausted, map[string]interface{}{
		"attempts": maxRetries + 1,
		"error":    lastErr.Error(),
	})
	f.metrics.RecordRequest(c.strategy, "error")
	return nil, &MaxRetriesError{Attempts: maxRetries + 1, Err: lastErr}
}

func retryReason(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return strings.ToLower(fe.Code)
	}
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return "other"
}
