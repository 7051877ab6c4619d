package main

import (
	"context"
	"errors"
	"net/http"

	httpadapter "github.com/couchcryptid/weather-apps/internal/adapter/http"
	"github.com/couchcryptid/weather-apps/internal/adapter/ipgeo"
	kafkaadapter "github.com/couchcryptid/weather-apps/internal/adapter/kafka"
	"github.com/couchcryptid/weather-apps/internal/advice"
	"github.com/couchcryptid/weather-apps/internal/cache"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/storage/sqlite"
	"github.com/couchcryptid/weather-apps/internal/watch"
)

func runServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "serve")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger

	provider := newProvider(e)
	memoized := cache.NewBucketedProvider(provider, cfg.CacheWindow, cfg.CacheSize, nil, e.metrics)
	opts := []httpadapter.WeatherAPIOption{
		httpadapter.WithMemoized(memoized),
		httpadapter.WithLocator(ipgeo.NewLocator(cfg, logger)),
	}

	advisor, err := advice.New(ctx, cfg, e.metrics, logger)
	if err != nil {
		logger.Warn("ai advice disabled", "reason", err)
	}
	opts = append(opts, httpadapter.WithAdvisor(advisor, err))

	if cfg.HistoryEnabled() {
		store, err := sqlite.Open(ctx, cfg.HistoryPath, logger)
		if err != nil {
			return err
		}
		defer closeSink(e, store)
		opts = append(opts, httpadapter.WithHistory(store))
		logger.Info("history enabled", "path", cfg.HistoryPath)
	}

	if !cfg.HasOpenWeatherKey() {
		logger.Warn("OPENWEATHER_API_KEY is not set; weather routes will fail and /readyz reports not ready")
	}
	ready := httpadapter.ReadinessFunc(func(context.Context) error {
		if !cfg.HasOpenWeatherKey() {
			return errors.New("OPENWEATHER_API_KEY is not configured")
		}
		return nil
	})

	api := httpadapter.NewWeatherAPI(provider, logger, opts...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, logger)
	logger.Info("serving weather api", "addr", cfg.HTTPAddr, "cache_window", cfg.CacheWindow, "cache_size", cfg.CacheSize)

	return serveUntilDone(ctx, e, srv, nil)
}

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "watch")
	once := fs.Bool("once", false, "capture a single batch and exit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger
	if len(cfg.WatchCities) == 0 {
		return errors.New("WATCH_CITIES is empty")
	}

	var sinks []watch.Sink
	if cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer closeSink(e, publisher)
		sinks = append(sinks, publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.HistoryEnabled() {
		store, err := sqlite.Open(ctx, cfg.HistoryPath, logger)
		if err != nil {
			return err
		}
		defer closeSink(e, store)
		sinks = append(sinks, store)
		logger.Info("history enabled", "path", cfg.HistoryPath)
	}
	if len(sinks) == 0 {
		logger.Warn("no sinks configured; observations are only logged (set KAFKA_BROKERS or HISTORY_PATH)")
	}

	w := watch.New(newProvider(e), sinks, cfg.WatchCities,
		domain.QueryOptions{Units: cfg.Units, Lang: cfg.Language}, cfg.WatchSchedule, logger, e.metrics)

	if *once {
		res, err := w.RunOnce(ctx)
		logger.Info("watch run finished", "captured", res.Captured, "failed", res.Failed)
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, w, nil, logger)
	return serveUntilDone(ctx, e, srv, w.Run)
}

// serveUntilDone runs srv, and background when given, until ctx is canceled
// or either of them fails, then shuts the server down.
func serveUntilDone(ctx context.Context, e *env, srv *httpadapter.Server, background func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	bgDone := make(chan struct{})
	go func() {
		defer close(bgDone)
		if background == nil {
			return
		}
		if err := background(ctx); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()
	e.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("http server shutdown error", "error", err)
	}
	// Sinks are closed by the caller, so a capture in flight must finish first.
	select {
	case <-bgDone:
	case <-shutdownCtx.Done():
		e.logger.Warn("background work did not stop before the shutdown timeout")
	}

	e.logger.Info("shutdown complete")
	return runErr
}

type closer interface {
	Name() string
	Close() error
}

func closeSink(e *env, c closer) {
	if err := c.Close(); err != nil {
		e.logger.Error("close error", "sink", c.Name(), "error", err)
	}
}
