package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/orders-stability/internal/config"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile  string
	debug       bool
	metricsAddr string
	trace       bool
	events      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ordersctl",
		Short: "Fetch orders through stability patterns",
		Long: `ordersctl calls an orders endpoint with one of the stability patterns
(fallback, retries with exponential backoff, timeout, circuit breaker) and
prints the orders it got as JSON. The stub subcommand serves a scripted
endpoint that misbehaves on demand.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to TOML config file")
	pf.BoolVar(&opts.debug, "debug", false, "Enable development logging (overrides observability.debug)")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides observability.metrics_addr)")
	pf.BoolVar(&opts.trace, "trace", false, "Record OpenTelemetry spans for fetch events (overrides observability.trace)")
	pf.StringVar(&opts.events, "events", "", "Also write fetch events to stderr as text or json lines (overrides observability.events)")

	cmd.AddCommand(newFetchCmd(opts), newStubCmd(opts))
	return cmd
}

// load returns the configuration from --config, or the defaults, with the
// global flags given on the command line applied on top.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Observability.Debug = o.debug
	}
	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("trace") {
		cfg.Observability.Trace = o.trace
	}
	if flags.Changed("events") {
		cfg.Observability.Events = o.events
	}
	return cfg, nil
}
