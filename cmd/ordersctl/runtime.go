package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/dshills/orders-stability/internal/config"
	"github.com/dshills/orders-stability/internal/logger"
	"github.com/dshills/orders-stability/stability"
	"github.com/dshills/orders-stability/stability/emit"
	"github.com/dshills/orders-stability/stability/store"
)

// runtime bundles the observability stack and snapshot store of one command.
type runtime struct {
	logger   *zap.Logger
	emitter  emit.Emitter
	registry *prometheus.Registry
	metrics  *stability.PrometheusMetrics
	client   *http.Client
	store    store.Store[[]stability.Order]

	tracerProvider *sdktrace.TracerProvider
	otelEmitter    *emit.OTelEmitter
	metricsLn      net.Listener
	metricsServer  *http.Server

	restoreLogger func()
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	log, restore, err := logger.Install(cfg.Observability.Debug)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		logger:        log,
		registry:      prometheus.NewRegistry(),
		client:        &http.Client{},
		restoreLogger: restore,
	}
	rt.registry.MustRegister(collectors.NewGoCollector())
	rt.metrics = stability.NewPrometheusMetrics(rt.registry)

	emitters := []emit.Emitter{emit.NewZapEmitter(log)}
	if format := cfg.Observability.Events; format != "" {
		emitters = append(emitters, emit.NewLogEmitter(os.Stderr, format == config.EventsJSON))
	}
	if cfg.Observability.Trace {
		rt.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(newZapSpanExporter(log)),
		)
		otel.SetTracerProvider(rt.tracerProvider)
		rt.otelEmitter = emit.NewOTelEmitter(rt.tracerProvider.Tracer("ordersctl"))
		emitters = append(emitters, rt.otelEmitter)
		rt.client.Transport = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(rt.tracerProvider))
	}
	rt.emitter = emit.NewMultiEmitter(emitters...)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		if err := rt.serveMetrics(addr); err != nil {
			_ = rt.close(context.Background())
			return nil, err
		}
	}

	rt.store, err = openStore(cfg.Store)
	if err != nil {
		_ = rt.close(context.Background())
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	rt.metricsLn = ln
	rt.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rt.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	rt.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

// metricsAddr returns the bound metrics address, or "" when metrics are not
// served.
func (rt *runtime) metricsAddr() string {
	if rt.metricsLn == nil {
		return ""
	}
	return rt.metricsLn.Addr().String()
}

// fetcherOptions returns the options wiring the runtime into a fetcher.
func (rt *runtime) fetcherOptions() []stability.Option {
	opts := []stability.Option{
		stability.WithHTTPClient(rt.client),
		stability.WithEmitter(rt.emitter),
		stability.WithMetrics(rt.metrics),
	}
	if rt.store != nil {
		opts = append(opts, stability.WithSnapshotStore(rt.store))
	}
	return opts
}

func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.metricsServer != nil {
		errs = append(errs, rt.metricsServer.Shutdown(ctx))
	}
	if rt.otelEmitter != nil {
		errs = append(errs, rt.otelEmitter.Flush(ctx))
	}
	if rt.tracerProvider != nil {
		errs = append(errs, rt.tracerProvider.Shutdown(ctx))
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	// Flushes the logger and puts the previous zap globals back.
	rt.restoreLogger()
	return errors.Join(errs...)
}

// openStore opens the configured snapshot store. DriverNone yields nil.
func openStore(cfg config.StoreConfig) (store.Store[[]stability.Order], error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemStore[[]stability.Order](), nil
	case config.DriverSQLite:
		st, err := store.NewSQLiteStore[[]stability.Order](cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case config.DriverMySQL:
		st, err := store.NewMySQLStore[[]stability.Order](cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql store: %w", err)
		}
		return st, nil
	default:
		return nil, nil
	}
}
