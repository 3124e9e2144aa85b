package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakejscott/phoneverify"
	"github.com/jakejscott/phoneverify/internal/api"
	"github.com/jakejscott/phoneverify/internal/config"
	"github.com/jakejscott/phoneverify/internal/logging"
	"github.com/jakejscott/phoneverify/metrics/export/prometheus"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		Long:  "serve starts the verification HTTP API and shuts down gracefully on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{Path: cfg.App.LogPath, Debug: cfg.App.Debug})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sink, closeSink := auditSink(cfg)
	defer func() { _ = closeSink.Close() }()

	engine, err := phoneverify.New().
		WithConfig(cfg.ToEngineConfig()).
		WithStore(store).
		WithSender(sender).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	var metrics http.Handler
	if cfg.Features.MetricsEnabled {
		metrics = prometheus.NewExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(api.Options{
			Service: engine,
			Logger:  logger.Named("http"),
			Metrics: metrics,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Backend),
			zap.String("sender", cfg.SMS.Sender),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
