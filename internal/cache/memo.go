// Package cache memoizes weather lookups for the HTTP API. Results are keyed
// by the normalized city, the query options, and the current time bucket, so
// an entry stops being served once its bucket has passed.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"github.com/jonboulle/clockwork"
)

// BucketedProvider wraps a WeatherProvider with a time-bucketed LRU.
// Errors are never cached.
type BucketedProvider struct {
	inner    domain.WeatherProvider
	window   time.Duration
	clock    clockwork.Clock
	current  *lru[domain.CurrentWeather]
	forecast *lru[[]domain.ForecastEntry]
	metrics  *observability.Metrics
}

// NewBucketedProvider memoizes inner for window with at most maxEntries per
// endpoint. A zero window disables memoization.
func NewBucketedProvider(inner domain.WeatherProvider, window time.Duration, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) *BucketedProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BucketedProvider{
		inner:    inner,
		window:   window,
		clock:    clock,
		current:  newLRU[domain.CurrentWeather](maxEntries),
		forecast: newLRU[[]domain.ForecastEntry](maxEntries),
		metrics:  metrics,
	}
}

func (b *BucketedProvider) CurrentWeather(ctx context.Context, city string, opts domain.QueryOptions) (domain.CurrentWeather, error) {
	if b.window <= 0 {
		return b.inner.CurrentWeather(ctx, city, opts)
	}
	key := b.key(city, opts)
	if w, ok := b.current.get(key); ok {
		b.record("weather", "hit")
		return w, nil
	}
	b.record("weather", "miss")

	w, err := b.inner.CurrentWeather(ctx, city, opts)
	if err != nil {
		return w, err
	}
	b.current.put(key, w)
	return w, nil
}

func (b *BucketedProvider) HourlyForecast(ctx context.Context, city string, hours int, opts domain.QueryOptions) ([]domain.ForecastEntry, error) {
	if b.window <= 0 {
		return b.inner.HourlyForecast(ctx, city, hours, opts)
	}
	key := fmt.Sprintf("%s|%d", b.key(city, opts), hours)
	if entries, ok := b.forecast.get(key); ok {
		b.record("forecast", "hit")
		return clone(entries), nil
	}
	b.record("forecast", "miss")

	entries, err := b.inner.HourlyForecast(ctx, city, hours, opts)
	if err != nil {
		return entries, err
	}
	b.forecast.put(key, clone(entries))
	return entries, nil
}

// key is lower(city)|units|lang|bucket where bucket is floor(now/window).
func (b *BucketedProvider) key(city string, opts domain.QueryOptions) string {
	bucket := b.clock.Now().UnixNano() / int64(b.window)
	return fmt.Sprintf("%s|%s|%s|%d", domain.NormalizeCity(city), opts.Units, opts.Lang, bucket)
}

func (b *BucketedProvider) record(endpoint, result string) {
	if b.metrics != nil {
		b.metrics.CacheLookups.WithLabelValues(endpoint, result).Inc()
	}
}

func clone(entries []domain.ForecastEntry) []domain.ForecastEntry {
	out := make([]domain.ForecastEntry, len(entries))
	copy(out, entries)
	return out
}

var _ domain.WeatherProvider = (*BucketedProvider)(nil)
