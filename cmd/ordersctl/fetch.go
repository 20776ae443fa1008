package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/orders-stability/internal/config"
	"github.com/dshills/orders-stability/stability"
)

type fetchOptions struct {
	url          string
	strategy     string
	maxRetries   int
	timeout      time.Duration
	attempts     int
	interval     time.Duration
	fallbackFile string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the orders with a stability strategy and print them as JSON",
		Long: `Fetch the orders once using the selected strategy:

  plain     a single unguarded request
  fallback  serve --fallback-file, or the latest snapshot, when the request fails
  retry     repeat retryable failures with exponential backoff
  timeout   give up after --timeout
  breaker   call through a circuit breaker, up to --attempts times`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runFetch(cmd.Context(), cmd.OutOrStdout(), cfg, opts.fallbackFile)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "Orders endpoint URL (overrides endpoint.url)")
	f.StringVarP(&opts.strategy, "strategy", "s", "", "plain, fallback, retry, timeout or breaker (overrides endpoint.strategy)")
	f.IntVar(&opts.maxRetries, "max-retries", 0, "Retries after the first attempt (overrides retry.max_retries)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Timeout for the timeout strategy (overrides timeout.timeout)")
	f.IntVar(&opts.attempts, "attempts", 0, "Calls the breaker strategy makes before giving up (overrides breaker.attempts)")
	f.DurationVar(&opts.interval, "interval", 0, "Pause between failed breaker calls (overrides breaker.interval)")
	f.StringVar(&opts.fallbackFile, "fallback-file", "", "JSON order list served by the fallback strategy")
	return cmd
}

// apply copies the flags given on the command line into cfg.
func (o *fetchOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Endpoint.URL = o.url
	}
	if flags.Changed("strategy") {
		cfg.Endpoint.Strategy = o.strategy
	}
	if flags.Changed("max-retries") {
		cfg.Retry.MaxRetries = o.maxRetries
	}
	if flags.Changed("timeout") {
		cfg.Timeout.Timeout = o.timeout
	}
	if flags.Changed("attempts") {
		cfg.Breaker.Attempts = o.attempts
	}
	if flags.Changed("interval") {
		cfg.Breaker.Interval = o.interval
	}
}

func runFetch(ctx context.Context, out io.Writer, cfg *config.Config, fallbackFile string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var fallback []stability.Order
	if fallbackFile != "" {
		if fallback, err = readOrders(fallbackFile); err != nil {
			return err
		}
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := rt.close(closeCtx); cerr != nil && err == nil {
			rt.logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	fetcher, err := stability.NewReliableFetcher(cfg.Endpoint.URL, rt.fetcherOptions()...)
	if err != nil {
		return err
	}

	log := rt.logger.With(zap.String("url", cfg.Endpoint.URL), zap.String("strategy", cfg.Endpoint.Strategy))
	log.Debug("fetching orders")

	orders, err := fetchWithStrategy(ctx, fetcher, cfg, fallback, log)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return err
	}
	log.Info("fetched orders", zap.Int("orders", len(orders)))

	if rt.store != nil && cfg.Store.Keep > 0 {
		if err := rt.store.Prune(ctx, cfg.Endpoint.URL, cfg.Store.Keep); err != nil {
			log.Warn("failed to prune snapshots", zap.Error(err))
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(orders)
}

func fetchWithStrategy(ctx context.Context, f *stability.ReliableFetcher, cfg *config.Config, fallback []stability.Order, log *zap.Logger) ([]stability.Order, error) {
	switch cfg.Endpoint.Strategy {
	case stability.StrategyFallback:
		return f.FetchOrdersWithFallback(ctx, fallback)
	case stability.StrategyRetry:
		return f.FetchOrdersWithRetries(ctx, cfg.Retry.MaxRetries, cfg.Backoff())
	case stability.StrategyTimeout:
		return f.FetchOrdersWithTimeout(ctx, cfg.Timeout.Timeout)
	case stability.StrategyBreaker:
		return fetchThroughBreaker(ctx, f, cfg, log)
	default:
		return f.FetchOrders(ctx)
	}
}

// fetchThroughBreaker keeps calling until a call succeeds or the attempt
// budget is spent, pausing between failed calls.
func fetchThroughBreaker(ctx context.Context, f *stability.ReliableFetcher, cfg *config.Config, log *zap.Logger) ([]stability.Order, error) {
	var lastErr error
	for call := 1; call <= cfg.Breaker.Attempts; call++ {
		orders, err := f.FetchOrdersWithCircuitBreaker(ctx, cfg.CircuitBreaker())
		if err == nil {
			log.Debug("breaker call succeeded", zap.Int("calls", call))
			return orders, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, stability.ErrCircuitOpen) {
			log.Debug("breaker call failed", zap.Int("call", call), zap.Error(err))
		}
		if call == cfg.Breaker.Attempts {
			break
		}

		timer := time.NewTimer(cfg.Breaker.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("no successful call in %d attempts: %w", cfg.Breaker.Attempts, lastErr)
}

func readOrders(path string) ([]stability.Order, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback file: %w", err)
	}
	var orders []stability.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("failed to parse fallback file %s: %w", path, err)
	}
	if orders == nil {
		orders = []stability.Order{}
	}
	return orders, nil
}
