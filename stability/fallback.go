package stability

import (
	"context"
	"errors"

	"github.com/dshills/orders-stability/stability/emit"
	"github.com/dshills/orders-stability/stability/store"
)

// Fallback sources reported in events and metrics.
const (
	FallbackSourceCaller   = "caller"
	FallbackSourceSnapshot = "snapshot"
)

// FetchOrdersWithFallback fetches the orders and, if that fails, degrades to
// data that is possibly stale instead of returning the error:
//
//  1. fallback, when it is non-nil (an empty slice is a valid fallback);
//  2. otherwise the latest snapshot saved for this endpoint, when a
//     snapshot store is configured;
//  3. otherwise the fetch error is returned unchanged.
func (f *ReliableFetcher) FetchOrdersWithFallback(ctx context.Context, fallback []Order) ([]Order, error) {
	c := f.newCall(StrategyFallback)

	orders, err := f.attempt(ctx, c)
	if err == nil {
		f.metrics.RecordRequest(c.strategy, "success")
		return orders, nil
	}

	if fallback != nil {
		f.useFallback(c, FallbackSourceCaller, len(fallback), err)
		return fallback, nil
	}

	if f.snapshots != nil {
		snap, serr := f.snapshots.LoadLatest(ctx, f.url)
		switch {
		case serr == nil:
			f.useFallback(c, FallbackSourceSnapshot, len(snap.Value), err)
			return snap.Value, nil
		case !errors.Is(serr, store.ErrNotFound):
			f.emit(c, emit.MsgSnapshotError, map[string]interface{}{"error": serr.Error()})
		}
	}

	f.metrics.RecordRequest(c.strategy, "error")
	return nil, err
}

func (f *ReliableFetcher) useFallback(c *call, source string, n int, cause error) {
	f.emit(c, emit.MsgFallbackUsed, map[string]interface{}{
		"source": source,
		"orders": n,
		"error":  cause.Error(),
	})
	f.metrics.IncrementFallbacks(source)
	f.metrics.RecordRequest(c.strategy, "fallback")
}
