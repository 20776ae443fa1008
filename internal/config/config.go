// Package config loads the ordersctl configuration from TOML files.
//
// A complete file looks like:
//
//	[endpoint]
//	url = "http://127.0.0.1:8080/orders"
//	strategy = "retry"
//
//	[retry]
//	max_retries = 5
//	initial_delay = "100ms"
//	factor = 2.0
//	max_delay = "1s"
//	jitter = "0s"
//
//	[breaker]
//	failure_threshold = 2
//	open_timeout = "500ms"
//	attempts = 50
//	interval = "50ms"
//
//	[timeout]
//	timeout = "1s"
//
//	[store]
//	driver = "sqlite"
//	path = "orders.db"
//	keep = 10
//
//	[observability]
//	debug = false
//	metrics_addr = ":9090"
//	trace = false
//	events = "json"
//
// Missing keys keep their defaults (see Default).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dshills/orders-stability/stability"
)

// Snapshot store drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Event line formats.
const (
	EventsText = "text"
	EventsJSON = "json"
)

var strategies = []string{
	stability.StrategyPlain,
	stability.StrategyFallback,
	stability.StrategyRetry,
	stability.StrategyTimeout,
	stability.StrategyBreaker,
}

// Config represents the ordersctl configuration
type Config struct {
	Endpoint      EndpointConfig      `toml:"endpoint"`
	Retry         RetryConfig         `toml:"retry"`
	Breaker       BreakerConfig       `toml:"breaker"`
	Timeout       TimeoutConfig       `toml:"timeout"`
	Store         StoreConfig         `toml:"store"`
	Observability ObservabilityConfig `toml:"observability"`
}

// EndpointConfig selects the orders endpoint and the stability strategy.
type EndpointConfig struct {
	URL      string `toml:"url"`
	Strategy string `toml:"strategy"`
}

// RetryConfig configures the retry strategy.
type RetryConfig struct {
	MaxRetries   int           `toml:"max_retries"`
	InitialDelay time.Duration `toml:"initial_delay"`
	Factor       float64       `toml:"factor"`
	MaxDelay     time.Duration `toml:"max_delay"`
	Jitter       time.Duration `toml:"jitter"`
}

// BreakerConfig configures the circuit breaker strategy. Attempts and
// Interval drive the CLI loop that keeps calling until the breaker lets a
// successful request through.
type BreakerConfig struct {
	FailureThreshold int           `toml:"failure_threshold"`
	OpenTimeout      time.Duration `toml:"open_timeout"`
	Attempts         int           `toml:"attempts"`
	Interval         time.Duration `toml:"interval"`
}

// TimeoutConfig configures the timeout strategy. Zero disables the limit.
type TimeoutConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

// StoreConfig selects where successful fetches are snapshotted.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
	// Keep is the number of snapshots retained per endpoint; 0 keeps all.
	Keep int `toml:"keep"`
}

// ObservabilityConfig toggles logging, metrics and tracing.
type ObservabilityConfig struct {
	Debug       bool   `toml:"debug"`
	MetricsAddr string `toml:"metrics_addr"`
	Trace       bool   `toml:"trace"`
	// Events additionally writes every fetch event to stderr as "text" or
	// "json" lines. Empty disables it.
	Events string `toml:"events"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:      "http://127.0.0.1:8080/orders",
			Strategy: stability.StrategyPlain,
		},
		Retry: RetryConfig{
			MaxRetries:   5,
			InitialDelay: stability.DefaultBackoff.InitialDelay,
			Factor:       stability.DefaultBackoff.Factor,
			MaxDelay:     stability.DefaultBackoff.MaxDelay,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 2,
			OpenTimeout:      500 * time.Millisecond,
			Attempts:         100,
			Interval:         50 * time.Millisecond,
		},
		Timeout: TimeoutConfig{Timeout: time.Second},
		Store: StoreConfig{
			Driver: DriverNone,
			Path:   "orders-snapshots.db",
			Keep:   10,
		},
	}
}

// LoadFromFile loads configuration from a TOML file on top of Default and
// validates the result. Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Endpoint.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("endpoint.url %q must be an absolute http(s) URL", c.Endpoint.URL))
	}
	if !validStrategy(c.Endpoint.Strategy) {
		errs = append(errs, fmt.Errorf("endpoint.strategy %q must be one of %s", c.Endpoint.Strategy, strings.Join(strategies, ", ")))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries %d must be >= 0", c.Retry.MaxRetries))
	}
	if err := c.Backoff().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}

	if err := c.CircuitBreaker().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("breaker: %w", err))
	}
	if c.Breaker.Attempts < 1 {
		errs = append(errs, fmt.Errorf("breaker.attempts %d must be >= 1", c.Breaker.Attempts))
	}
	if c.Breaker.Interval < 0 {
		errs = append(errs, fmt.Errorf("breaker.interval %v is negative", c.Breaker.Interval))
	}

	if c.Timeout.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout.timeout %v is negative", c.Timeout.Timeout))
	}

	switch c.Store.Driver {
	case DriverNone, DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverMySQL:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be one of none, memory, sqlite, mysql", c.Store.Driver))
	}
	switch c.Observability.Events {
	case "", EventsText, EventsJSON:
	default:
		errs = append(errs, fmt.Errorf("observability.events %q must be empty, text or json", c.Observability.Events))
	}

	if c.Store.Keep < 0 {
		errs = append(errs, fmt.Errorf("store.keep %d must be >= 0", c.Store.Keep))
	}

	return errors.Join(errs...)
}

// Backoff returns the retry waits as a stability.BackoffConfig.
func (c *Config) Backoff() stability.BackoffConfig {
	return stability.BackoffConfig{
		InitialDelay: c.Retry.InitialDelay,
		Factor:       c.Retry.Factor,
		MaxDelay:     c.Retry.MaxDelay,
		Jitter:       c.Retry.Jitter,
	}
}

// CircuitBreaker returns the breaker settings as a
// stability.CircuitBreakerConfig.
func (c *Config) CircuitBreaker() stability.CircuitBreakerConfig {
	return stability.CircuitBreakerConfig{
		FailureThreshold: c.Breaker.FailureThreshold,
		OpenTimeout:      c.Breaker.OpenTimeout,
	}
}

func validStrategy(s string) bool {
	for _, known := range strategies {
		if s == known {
			return true
		}
	}
	return false
}
