// Package watch periodically captures the current weather for a fixed list
// of cities and hands the observations to every configured sink.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"github.com/robfig/cron/v3"
)

// Sink receives each batch of captured observations.
type Sink interface {
	Name() string
	LoadBatch(ctx context.Context, observations []domain.Observation) error
}

// ErrNoObservations is returned by RunOnce when no city could be captured.
var ErrNoObservations = errors.New("no observations captured")

// Result summarizes one capture run.
type Result struct {
	Captured int
	Failed   int
}

// Watcher orchestrates the scheduled fetch-and-store loop.
type Watcher struct {
	provider domain.WeatherProvider
	sinks    []Sink
	cities   []string
	opts     domain.QueryOptions
	schedule string
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
	mu       sync.Mutex // serializes runs
}

// New creates a Watcher that captures cities on the given cron schedule.
func New(provider domain.WeatherProvider, sinks []Sink, cities []string, opts domain.QueryOptions, schedule string, logger *slog.Logger, metrics *observability.Metrics) *Watcher {
	return &Watcher{
		provider: provider,
		sinks:    sinks,
		cities:   cities,
		opts:     opts,
		schedule: schedule,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has captured at least one observation.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("watcher has not captured any observations yet")
	}
	return nil
}

// Run captures once immediately, then on every tick of the schedule until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.cities) == 0 {
		return errors.New("no cities to watch (set WATCH_CITIES)")
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{w.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{w.logger})),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("watcher started", "schedule", w.schedule, "cities", len(w.cities), "sinks", len(w.sinks))
	w.tick(ctx)
	c.Start()

	<-ctx.Done()
	w.logger.Info("watcher stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

func (w *Watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("watch run failed", "error", err)
	}
}

// RunOnce fetches every city once and delivers the observations to every
// sink. Per-city failures are logged and counted, never retried. A sink
// failure does not stop the other sinks.
func (w *Watcher) RunOnce(ctx context.Context) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	var res Result
	observations := make([]domain.Observation, 0, len(w.cities))

	for _, city := range w.cities {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		cw, err := w.provider.CurrentWeather(ctx, city, w.opts)
		if err != nil {
			res.Failed++
			w.logger.Warn("capture failed, skipping city",
				"city", city,
				"kind", domain.KindOf(err).String(),
				"error", err,
			)
			continue
		}
		observations = append(observations, domain.NewObservation(city, w.opts, cw))
	}
	res.Captured = len(observations)

	w.metrics.ObservationsCaptured.Add(float64(res.Captured))
	w.metrics.WatchRunDuration.Observe(time.Since(start).Seconds())

	if res.Captured == 0 {
		w.metrics.WatchRuns.WithLabelValues("failed").Inc()
		return res, ErrNoObservations
	}

	for _, s := range w.sinks {
		if err := s.LoadBatch(ctx, observations); err != nil {
			w.logger.Error("sink write failed", "sink", s.Name(), "error", err, "batch_size", len(observations))
			w.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			continue
		}
		w.metrics.ObservationsStored.WithLabelValues(s.Name()).Add(float64(len(observations)))
	}

	outcome := "success"
	if res.Failed > 0 {
		outcome = "partial"
	}
	w.metrics.WatchRuns.WithLabelValues(outcome).Inc()
	w.ready.Store(true)

	w.logger.Info("watch run complete", "captured", res.Captured, "failed", res.Failed, "duration", time.Since(start))
	return res, nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
