package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/config"
	"finitefield.org/hanko-catalog/internal/images"
	"finitefield.org/hanko-catalog/internal/observability"
	"finitefield.org/hanko-catalog/internal/source"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	// A failed load leaves the server up: pages answer 503 and /readyz reports
	// not ready. There is no retry.
	cat, err := catalog.Load(ctx, newSource(cfg.Products), logger.Named("catalog"))
	if err != nil {
		logger.Error("catalog unavailable; serving maintenance responses", zap.Error(err))
	}

	resolver, closeResolver, err := newResolver(ctx, cfg.Images)
	if err != nil {
		logger.Fatal("failed to initialise image resolver", zap.Error(err))
	}
	defer func() {
		if err := closeResolver.Close(); err != nil {
			logger.Warn("image resolver close error", zap.Error(err))
		}
	}()
	cache := images.NewCached(resolver, cfg.Images.CacheTTL)

	a, err := newApp(cfg, logger, cat, cache)
	if err != nil {
		logger.Fatal("failed to initialise web app", zap.Error(err))
	}
	defer a.views.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.views.Run(sweepCtx, cfg.Session.SweepInterval, func() {
		if removed := cache.Purge(); removed > 0 {
			logger.Debug("purged expired images", zap.Int("count", removed))
		}
	})

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("catalog web listening", zap.Bool("dev", cfg.Web.Dev), zap.Bool("ready", a.views.Ready()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSource(cfg config.ProductsConfig) catalog.Source {
	if cfg.URL != "" {
		return source.NewClient(cfg.URL, cfg.FetchTimeout)
	}
	return source.File{Path: cfg.File}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newResolver prefers the storage bucket when one is configured.
func newResolver(ctx context.Context, cfg config.ImagesConfig) (images.Resolver, io.Closer, error) {
	if cfg.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("storage client: %w", err)
		}
		r, err := images.NewBucketResolver(client, cfg.Bucket, cfg.MaxBytes)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return r, client, nil
	}
	r := images.NewHTTPResolver(cfg.BaseURL,
		images.WithTimeout(cfg.Timeout),
		images.WithMaxBytes(cfg.MaxBytes),
	)
	return r, nopCloser{}, nil
}
