package stability

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/dshills/orders-stability/stability/emit"
	"github.com/dshills/orders-stability/stability/store"
)

// Option is a functional option for configuring a ReliableFetcher.
//
// Example:
//
//	fetcher, err := stability.NewReliableFetcher(
//	    "http://orders.internal/orders",
//	    stability.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    stability.WithMetrics(stability.NewPrometheusMetrics(registry)),
//	    stability.WithSnapshotStore(store.NewMemStore[[]stability.Order]()),
//	)
type Option func(*fetcherConfig) error

// fetcherConfig collects options before they are applied to a fetcher.
type fetcherConfig struct {
	client    *http.Client
	emitter   emit.Emitter
	metrics   *PrometheusMetrics
	snapshots store.Store[[]Order]
	retryable func(error) bool
	rng       *rand.Rand
	now       func() time.Time
}

func defaultFetcherConfig() fetcherConfig {
	return fetcherConfig{
		// Timeouts are carried by the request context.
		client:    &http.Client{},
		emitter:   emit.NewNullEmitter(),
		retryable: IsRetryable,
		now:       time.Now,
	}
}

// WithHTTPClient sets the client used for requests.
//
// Default: a zero http.Client. Avoid setting http.Client.Timeout: it
// surfaces as a transport error instead of a TimeoutError.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *fetcherConfig) error {
		if client == nil {
			return errors.New("http client must not be nil")
		}
		cfg.client = client
		return nil
	}
}

// WithEmitter sets the event sink. nil restores the NullEmitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *fetcherConfig) error {
		if emitter == nil {
			emitter = emit.NewNullEmitter()
		}
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
//
//	registry := prometheus.NewRegistry()
//	fetcher, _ := stability.NewReliableFetcher(url,
//	    stability.WithMetrics(stability.NewPrometheusMetrics(registry)))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *fetcherConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithSnapshotStore makes every successful fetch save a snapshot under the
// endpoint URL, and lets FetchOrdersWithFallback serve the latest snapshot
// when it is called without a fallback of its own.
func WithSnapshotStore(st store.Store[[]Order]) Option {
	return func(cfg *fetcherConfig) error {
		cfg.snapshots = st
		return nil
	}
}

// WithRetryable replaces IsRetryable as the predicate deciding which failures
// FetchOrdersWithRetries repeats and which failures the circuit breaker
// counts.
func WithRetryable(fn func(error) bool) Option {
	return func(cfg *fetcherConfig) error {
		if fn == nil {
			return errors.New("retryable predicate must not be nil")
		}
		cfg.retryable = fn
		return nil
	}
}

// WithRand sets the random source for backoff jitter. Useful for
// reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *fetcherConfig) error {
		cfg.rng = rng
		return nil
	}
}

// WithClock sets the time source used by the circuit breaker.
func WithClock(now func() time.Time) Option {
	return func(cfg *fetcherConfig) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		cfg.now = now
		return nil
	}
}
