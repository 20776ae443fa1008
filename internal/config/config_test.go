package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/orders-stability/stability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ordersctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
url = "http://orders.internal:9000/orders"
strategy = "breaker"

[retry]
max_retries = 3
initial_delay = "50ms"
factor = 3.0
max_delay = "2s"
jitter = "10ms"

[breaker]
failure_threshold = 4
open_timeout = "1s"

[store]
driver = "sqlite"
path = "/tmp/orders.db"
keep = 3

[observability]
debug = true
metrics_addr = ":9090"
trace = true
events = "json"
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Endpoint.URL != "http://orders.internal:9000/orders" {
		t.Errorf("Endpoint.URL = %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.Strategy != stability.StrategyBreaker {
		t.Errorf("Endpoint.Strategy = %q, want breaker", cfg.Endpoint.Strategy)
	}

	wantBackoff := stability.BackoffConfig{
		InitialDelay: 50 * time.Millisecond,
		Factor:       3,
		MaxDelay:     2 * time.Second,
		Jitter:       10 * time.Millisecond,
	}
	if got := cfg.Backoff(); got != wantBackoff {
		t.Errorf("Backoff() = %+v, want %+v", got, wantBackoff)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}

	wantBreaker := stability.CircuitBreakerConfig{FailureThreshold: 4, OpenTimeout: time.Second}
	if got := cfg.CircuitBreaker(); got != wantBreaker {
		t.Errorf("CircuitBreaker() = %+v, want %+v", got, wantBreaker)
	}

	// Keys absent from the file keep their defaults.
	def := Default()
	if cfg.Breaker.Attempts != def.Breaker.Attempts || cfg.Breaker.Interval != def.Breaker.Interval {
		t.Errorf("Breaker attempts/interval = %d/%v, want defaults %d/%v",
			cfg.Breaker.Attempts, cfg.Breaker.Interval, def.Breaker.Attempts, def.Breaker.Interval)
	}
	if cfg.Timeout.Timeout != def.Timeout.Timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout.Timeout, def.Timeout.Timeout)
	}

	if cfg.Store.Driver != DriverSQLite || cfg.Store.Path != "/tmp/orders.db" || cfg.Store.Keep != 3 {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if !cfg.Observability.Debug || !cfg.Observability.Trace || cfg.Observability.MetricsAddr != ":9090" || cfg.Observability.Events != EventsJSON {
		t.Errorf("Observability = %+v", cfg.Observability)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "[endpoint\nurl = ", "failed to decode TOML"},
		{"unknown key", "[endpoint]\nurll = \"http://x/orders\"\n", "endpoint.urll"},
		{"bad duration", "[timeout]\ntimeout = \"soon\"\n", "failed to decode TOML"},
		{"invalid value", "[retry]\nfactor = 0.5\n", "retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadFromFile() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFromFile(missing) error = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative url", func(c *Config) { c.Endpoint.URL = "/orders" }, "endpoint.url"},
		{"unknown strategy", func(c *Config) { c.Endpoint.Strategy = "hedge" }, "endpoint.strategy"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"zero threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "breaker"},
		{"zero attempts", func(c *Config) { c.Breaker.Attempts = 0 }, "breaker.attempts"},
		{"negative interval", func(c *Config) { c.Breaker.Interval = -time.Second }, "breaker.interval"},
		{"negative timeout", func(c *Config) { c.Timeout.Timeout = -time.Second }, "timeout.timeout"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = DriverSQLite; c.Store.Path = "" }, "store.path"},
		{"mysql without dsn", func(c *Config) { c.Store.Driver = DriverMySQL }, "store.dsn"},
		{"negative keep", func(c *Config) { c.Store.Keep = -1 }, "store.keep"},
		{"unknown events format", func(c *Config) { c.Observability.Events = "xml" }, "observability.events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Retry.Factor = 0
	cfg.Breaker.OpenTimeout = 0

	err := cfg.Validate()
	if !errors.Is(err, stability.ErrInvalidBackoff) {
		t.Errorf("error = %v, want ErrInvalidBackoff", err)
	}
	if !errors.Is(err, stability.ErrInvalidBreakerConfig) {
		t.Errorf("error = %v, want ErrInvalidBreakerConfig", err)
	}
}
