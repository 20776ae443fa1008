package stability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/orders-stability/stability/emit"
	"github.com/dshills/orders-stability/stability/store"
)

// Fetcher retrieves the list of orders, optionally guarded by one of the
// stability patterns.
type Fetcher interface {
	// FetchOrders performs a single unguarded request.
	FetchOrders(ctx context.Context) ([]Order, error)

	// FetchOrdersWithFallback returns fallback data instead of failing.
	FetchOrdersWithFallback(ctx context.Context, fallback []Order) ([]Order, error)

	// FetchOrdersWithRetries repeats retryable failures with exponential
	// backoff, up to maxRetries retries after the first attempt.
	FetchOrdersWithRetries(ctx context.Context, maxRetries int, backoff BackoffConfig) ([]Order, error)

	// FetchOrdersWithTimeout gives up once timeout has elapsed.
	FetchOrdersWithTimeout(ctx context.Context, timeout time.Duration) ([]Order, error)

	// FetchOrdersWithCircuitBreaker rejects calls while the endpoint is
	// considered unhealthy.
	FetchOrdersWithCircuitBreaker(ctx context.Context, cfg CircuitBreakerConfig) ([]Order, error)
}

// Strategy labels used in events and metrics.
const (
	StrategyPlain    = "plain"
	StrategyFallback = "fallback"
	StrategyRetry    = "retry"
	StrategyTimeout  = "timeout"
	StrategyBreaker  = "breaker"
)

// maxErrorBody bounds how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 512

// ReliableFetcher is the Fetcher implementation for an HTTP orders endpoint.
//
// It is safe for concurrent use. The circuit breaker is shared by all calls
// of one ReliableFetcher, so create one fetcher per endpoint and reuse it.
type ReliableFetcher struct {
	url       string
	client    *http.Client
	emitter   emit.Emitter
	metrics   *PrometheusMetrics
	snapshots store.Store[[]Order]
	retryable func(error) bool
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	breakerMu sync.Mutex
	breaker   *circuitBreaker
}

var _ Fetcher = (*ReliableFetcher)(nil)

// NewReliableFetcher creates a fetcher for the absolute http(s) URL rawURL.
// Errors match ErrInvalidConfig.
func NewReliableFetcher(rawURL string, opts ...Option) (*ReliableFetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalidConfig, rawURL)
	}

	cfg := defaultFetcherConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return &ReliableFetcher{
		url:       rawURL,
		client:    cfg.client,
		emitter:   cfg.emitter,
		metrics:   cfg.metrics,
		snapshots: cfg.snapshots,
		retryable: cfg.retryable,
		now:       cfg.now,
		rng:       cfg.rng,
	}, nil
}

// URL returns the endpoint this fetcher targets.
func (f *ReliableFetcher) URL() string {
	return f.url
}

// call carries the identity of one logical Fetcher call across its attempts.
type call struct {
	id       string
	strategy string
	attempt  int
}

func (f *ReliableFetcher) newCall(strategy string) *call {
	return &call{id: uuid.NewString(), strategy: strategy}
}

func (f *ReliableFetcher) emit(c *call, msg string, meta map[string]interface{}) {
	f.emitter.Emit(emit.Event{
		FetchID:  c.id,
		Strategy: c.strategy,
		Attempt:  c.attempt,
		Msg:      msg,
		Meta:     meta,
	})
}

// FetchOrders performs a single GET against the endpoint and decodes the
// order list.
func (f *ReliableFetcher) FetchOrders(ctx context.Context) ([]Order, error) {
	c := f.newCall(StrategyPlain)
	orders, err := f.attempt(ctx, c)
	if err != nil {
		f.metrics.RecordRequest(c.strategy, "error")
		return nil, err
	}
	f.metrics.RecordRequest(c.strategy, "success")
	return orders, nil
}

// attempt runs one HTTP request as part of call c, emitting its events and
// saving a snapshot on success.
func (f *ReliableFetcher) attempt(ctx context.Context, c *call) ([]Order, error) {
	c.attempt++
	f.emit(c, emit.MsgFetchStart, map[string]interface{}{"url": f.url})

	start := time.Now()
	orders, err := f.do(ctx)
	elapsed := time.Since(start)

	if err != nil {
		meta := map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			meta["code"] = fe.Code
			if fe.StatusCode != 0 {
				meta["status_code"] = fe.StatusCode
			}
		}
		f.emit(c, emit.MsgFetchError, meta)
		f.metrics.RecordLatency(c.strategy, "error", elapsed)
		return nil, err
	}

	f.emit(c, emit.MsgFetchSuccess, map[string]interface{}{
		"duration_ms": elapsed.Milliseconds(),
		"orders":      len(orders),
	})
	f.metrics.RecordLatency(c.strategy, "success", elapsed)

	if f.snapshots != nil {
		if err := f.snapshots.Save(ctx, f.url, orders); err != nil {
			f.emit(c, emit.MsgSnapshotError, map[string]interface{}{"error": err.Error()})
		}
	}
	return orders, nil
}

// do is the bare request/decode step.
func (f *ReliableFetcher) do(ctx context.Context) ([]Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Message: "failed to create request", Code: CodeBuildRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, "failed to execute request", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("unexpected status %d from orders endpoint", resp.StatusCode)
		if body := strings.TrimSpace(string(snippet)); body != "" {
			msg += ": " + body
		}
		return nil, &FetchError{
			Message:    msg,
			Code:       CodeBadStatus,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var orders []Order
	dec := json.NewDecoder(resp.Body)
	err = dec.Decode(&orders)
	if err == nil {
		// The body must hold exactly one JSON value.
		if _, tokErr := dec.Token(); tokErr != io.EOF {
			err = errTrailingData
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, "failed to read response body", err)
		}
		return nil, &FetchError{
			Message:    "failed to decode orders",
			Code:       CodeDecodeFailed,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

var errTrailingData = errors.New("unexpected data after orders list")

// transportError classifies a failure to talk to the endpoint. When ctx has
// ended, the context error is wrapped instead so errors.Is(err,
// context.DeadlineExceeded) holds, and the failure is not retryable.
func transportError(ctx context.Context, msg string, err error) *FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &FetchError{Message: msg, Code: CodeTransport, Err: ctxErr}
	}
	return &FetchError{Message: msg, Code: CodeTransport, Retryable: true, Err: err}
}

// BreakerState reports the circuit breaker state. It is StateClosed until
// FetchOrdersWithCircuitBreaker has been called.
func (f *ReliableFetcher) BreakerState() BreakerState {
	f.breakerMu.Lock()
	b := f.breaker
	f.breakerMu.Unlock()
	if b == nil {
		return StateClosed
	}
	return b.currentState()
}

func (f *ReliableFetcher) backoffDelay(b BackoffConfig, retry int) time.Duration {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return b.Delay(retry, f.rng)
}
