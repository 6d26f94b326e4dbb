package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanpama/membergraph/internal/config"
	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/graph"
	"github.com/hanpama/membergraph/internal/logging"
	"github.com/hanpama/membergraph/internal/metrics"
	"github.com/hanpama/membergraph/internal/otel"
	"github.com/hanpama/membergraph/internal/server"
	"github.com/hanpama/membergraph/internal/store"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// app is everything serve runs, built from one Config.
type app struct {
	handler http.Handler
	store   *store.Store
	cleanup []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// newApp installs a global event bus and wires every subscriber to it. Only
// one app may be live at a time.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	eventbus.Use(eventbus.New())
	a.cleanup = append(a.cleanup, func() { eventbus.Use(nil) })
	a.cleanup = append(a.cleanup, logging.Subscribe(logger))

	shutdownOtel, err := otel.Setup(cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { _ = shutdownOtel(context.Background()) })

	backend, err := openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cleanup = append(a.cleanup, func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	})
	a.store = store.Observe(backend, func(ctx context.Context, c store.Call) {
		eventbus.Publish(ctx, events.StoreCall(c))
	})

	svc, err := graph.New(a.store, graph.WithDispatchObserver(func(ctx context.Context, d dataloader.DispatchInfo) {
		eventbus.Publish(ctx, events.LoaderDispatch(d))
	}))
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithMaxDepth(cfg.GraphQL.MaxDepth),
		server.WithLogger(logger),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	h, err := server.New(func() executor.Runtime { return svc.NewRuntime() }, svc.Schema(), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if cfg.Metrics.Enabled {
		m := metrics.New()
		a.cleanup = append(a.cleanup, m.Subscribe())
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	a.handler = mux
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return store.NewMemory(), nil
	}
	st := store.NewRedis(cfg.RedisStoreConfig())
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := store.SeedMemberTypes(ctx, st.MemberTypes); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("address", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.Int("max_depth", cfg.GraphQL.MaxDepth),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}
