package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/orders-stability/internal/logger"
	"github.com/dshills/orders-stability/stability/orderstest"
)

// Stub modes.
const (
	stubModeOrders  = "orders"
	stubModeLatency = "latency"
	stubModeErrors  = "errors"
	stubModeFailing = "failing"
)

type stubOptions struct {
	listen string
	mode   string
	orders int
	errors int
	delay  time.Duration
}

func newStubCmd(root *rootOptions) *cobra.Command {
	opts := &stubOptions{}

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a scripted orders endpoint",
		Long: `Serve GET /orders with a scripted behaviour:

  orders   200 with --orders orders
  latency  200 with five orders after --delay
  errors   500 for the first --errors requests, then 200 with --orders orders
  failing  500 on every request`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			log, restore, err := logger.Install(cfg.Observability.Debug)
			if err != nil {
				return err
			}
			defer restore()

			h := orderstest.NewHandler()
			if err := opts.configure(h); err != nil {
				return err
			}
			ln, err := net.Listen("tcp", opts.listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", opts.listen, err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serveStub(ctx, ln, h, log.With(zap.String("mode", opts.mode)))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.listen, "listen", "l", "127.0.0.1:8080", "Listen address")
	f.StringVarP(&opts.mode, "mode", "m", stubModeOrders, "orders, latency, errors or failing")
	f.IntVar(&opts.orders, "orders", 5, "Orders served on success")
	f.IntVar(&opts.errors, "errors", 5, "Leading 500 responses in errors mode")
	f.DurationVar(&opts.delay, "delay", 5*time.Second, "Response delay in latency mode")
	return cmd
}

// configure installs the stub selected by the options on h.
func (o *stubOptions) configure(h *orderstest.Handler) error {
	if o.orders < 0 {
		return fmt.Errorf("--orders %d must be >= 0", o.orders)
	}
	switch o.mode {
	case stubModeOrders:
		h.StubOrders(o.orders)
	case stubModeLatency:
		if o.delay < 0 {
			return fmt.Errorf("--delay %v is negative", o.delay)
		}
		h.StubHighLatency(o.delay)
	case stubModeErrors:
		return h.StubErrors(o.errors, o.orders)
	case stubModeFailing:
		h.StubAlwaysFailing()
	default:
		return fmt.Errorf("unknown stub mode %q (want orders, latency, errors or failing)", o.mode)
	}
	return nil
}

// serveStub serves h on ln until ctx is done.
func serveStub(ctx context.Context, ln net.Listener, h *orderstest.Handler, log *zap.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info("serving orders stub", zap.String("url", "http://"+ln.Addr().String()+orderstest.OrdersPath))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("stub server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Int("requests", h.Requests()))
	h.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
