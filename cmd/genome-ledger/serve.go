package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/genomechain/genome-ledger/internal/api"
	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/config"
	"github.com/genomechain/genome-ledger/internal/eventbus"
	"github.com/genomechain/genome-ledger/internal/logging"
	"github.com/genomechain/genome-ledger/internal/metrics"
	"github.com/genomechain/genome-ledger/internal/sim"
	"github.com/genomechain/genome-ledger/internal/storage"
	"github.com/genomechain/genome-ledger/internal/tracing"
)

const serverShutdownTimeout = 30 * time.Second

func newServeCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Deploy the contracts and serve the HTTP API",
		Long: `Deploys a fresh set of contracts from OWNER_ADDRESS and serves the API on
LISTEN_ADDR and Prometheus metrics on METRICS_LISTEN_ADDR. Configuration is
read from the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), logOut)
		},
	}
}

func run(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := initializeComponents(ctx, cfg, logOut)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("genome-ledger starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsListenAddr,
		"owner", cfg.OwnerAddress.Hex(),
		"manual_clock", cfg.ManualClock)
	for name, addr := range c.world.Contracts() {
		c.logger.Info("contract deployed", "contract", name, "address", addr.Hex())
	}

	return startServerAndWaitForShutdown(ctx, c.logger,
		createServer(cfg.ListenAddr, c.apiRouter),
		createServer(cfg.MetricsListenAddr, c.metricsRouter))
}

// components is everything a running server owns.
type components struct {
	logger        *slog.Logger
	logLevel      *slog.LevelVar
	store         *storage.SQLiteStorage
	redis         *redis.Client
	world         *sim.World
	clock         *chain.ManualClock
	registry      *prometheus.Registry
	apiRouter     chi.Router
	metricsRouter chi.Router

	shutdownTracing func(context.Context) error
}

func initializeComponents(ctx context.Context, cfg *config.Config, logOut io.Writer) (*components, error) {
	logger, logLevel, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	c := &components{logger: logger, logLevel: logLevel}
	ok := false
	defer func() {
		if !ok {
			c.close()
		}
	}()

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Init(c.registry, version); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	tp, shutdown, err := tracing.Setup(ctx, cfg.OTELEndpoint, "genome-ledger", version)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	c.store, err = storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := []chain.Option{
		chain.WithLogger(logger),
		chain.WithTracerProvider(tp),
		chain.WithObserver(metrics.ObserveTransaction),
		chain.WithSink(c.store),
		chain.WithSink(metrics.EventCounter{}),
	}
	if cfg.RedisURL != "" {
		c.redis, err = eventbus.Connect(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chain.WithSink(eventbus.NewPublisher(c.redis, cfg.RedisStream)))
		logger.Info("publishing events to redis", "stream", cfg.RedisStream)
	}
	if cfg.ManualClock {
		c.clock = chain.NewManualClock(time.Now())
		opts = append(opts, chain.WithClock(c.clock))
	}

	params, err := cfg.WorldParams()
	if err != nil {
		return nil, err
	}
	c.world, err = sim.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy contracts: %w", err)
	}

	bootstrap, err := auth.NewBootstrapService(c.store, cfg.MasterAPIKey, cfg.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to set up bootstrap: %w", err)
	}
	handlerOpts := []api.Option{api.WithLogger(logger, logLevel)}
	if c.clock != nil {
		handlerOpts = append(handlerOpts, api.WithManualClock(c.clock))
	}
	handler := api.NewHandler(c.world, c.store, auth.NewAuthenticator(c.store, bootstrap), handlerOpts...)
	c.apiRouter = handler.NewRouter()

	c.metricsRouter = chi.NewRouter()
	c.metricsRouter.Handle("/metrics", metrics.HandlerFor(c.registry))

	ok = true
	return c, nil
}

// close releases everything initializeComponents acquired. Errors are logged.
func (c *components) close() {
	if c.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdownTracing(ctx); err != nil {
			c.logger.Error("failed to flush traces", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("failed to close redis", "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("failed to close storage", "error", err)
		}
	}
}

func createServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// startServerAndWaitForShutdown serves until a server fails, ctx is
// canceled, or SIGINT/SIGTERM arrives, then shuts every server down.
func startServerAndWaitForShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down", "signal", sig.String())
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		logger.Info("servers stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}
