package stability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects fetcher metrics under the "orders_stability"
// namespace:
//
//  1. requests_total (counter): logical fetch calls.
//     Labels: strategy, outcome (success, error, fallback, timeout, rejected).
//  2. request_latency_ms (histogram): duration of individual HTTP attempts.
//     Labels: strategy, status (success, error).
//  3. retries_total (counter): retries scheduled by FetchOrdersWithRetries.
//     Labels: reason (a FetchError code in lower case, or "other").
//  4. fallbacks_total (counter): fallbacks served.
//     Labels: source (caller, snapshot).
//  5. timeouts_total (counter): calls ended by FetchOrdersWithTimeout's timeout.
//  6. circuit_state (gauge): 0 closed, 1 half-open, 2 open.
//  7. circuit_transitions_total (counter): breaker state changes.
//     Labels: from, to.
//
// All methods are safe on a nil receiver, which records nothing.
type PrometheusMetrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	timeouts    prometheus.Counter
	circuit     prometheus.Gauge
	transitions *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers the fetcher metrics with
// registry. A nil registry means prometheus.DefaultRegisterer.
//
// Registering twice on the same registry panics, as with any promauto
// metric; use one PrometheusMetrics per registry.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders_stability",
			Name:      "requests_total",
			Help:      "Logical orders fetch calls by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orders_stability",
			Name:      "request_latency_ms",
			Help:      "Duration of individual HTTP attempts against the orders endpoint in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"strategy", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders_stability",
			Name:      "retries_total",
			Help:      "Retries scheduled after a retryable failure",
		}, []string{"reason"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders_stability",
			Name:      "fallbacks_total",
			Help:      "Fallback responses served instead of live data",
		}, []string{"source"}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "orders_stability",
			Name:      "timeouts_total",
			Help:      "Fetch calls abandoned because their timeout elapsed",
		}),
		circuit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "orders_stability",
			Name:      "circuit_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders_stability",
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state changes",
		}, []string{"from", "to"}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordRequest counts one logical fetch call.
func (pm *PrometheusMetrics) RecordRequest(strategy, outcome string) {
	if !pm.on() {
		return
	}
	pm.requests.WithLabelValues(strategy, outcome).Inc()
}

// RecordLatency observes the duration of one HTTP attempt.
func (pm *PrometheusMetrics) RecordLatency(strategy, status string, latency time.Duration) {
	if !pm.on() {
		return
	}
	pm.latency.WithLabelValues(strategy, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries counts a scheduled retry.
func (pm *PrometheusMetrics) IncrementRetries(reason string) {
	if !pm.on() {
		return
	}
	pm.retries.WithLabelValues(reason).Inc()
}

// IncrementFallbacks counts a served fallback.
func (pm *PrometheusMetrics) IncrementFallbacks(source string) {
	if !pm.on() {
		return
	}
	pm.fallbacks.WithLabelValues(source).Inc()
}

// IncrementTimeouts counts a call ended by its timeout.
func (pm *PrometheusMetrics) IncrementTimeouts() {
	if !pm.on() {
		return
	}
	pm.timeouts.Inc()
}

// RecordTransition counts a breaker state change and updates circuit_state.
func (pm *PrometheusMetrics) RecordTransition(from, to BreakerState) {
	if !pm.on() {
		return
	}
	pm.transitions.WithLabelValues(from.String(), to.String()).Inc()
	pm.circuit.Set(float64(to))
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
