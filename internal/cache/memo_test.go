package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for memo tests ---

type countingProvider struct {
	currentCalls  int
	forecastCalls int
	temp          float64
	err           error
}

func (m *countingProvider) CurrentWeather(_ context.Context, city string, _ domain.QueryOptions) (domain.CurrentWeather, error) {
	m.currentCalls++
	if m.err != nil {
		return domain.CurrentWeather{}, m.err
	}
	return domain.CurrentWeather{City: city, Temperature: m.temp}, nil
}

func (m *countingProvider) HourlyForecast(_ context.Context, _ string, hours int, _ domain.QueryOptions) ([]domain.ForecastEntry, error) {
	m.forecastCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ForecastEntry, hours)
	for i := range out {
		out[i] = domain.ForecastEntry{Timestamp: int64(i), Temperature: m.temp}
	}
	return out, nil
}

// --- BucketedProvider tests ---

func TestBucketedProvider_HitWithinWindow(t *testing.T) {
	inner := &countingProvider{temp: 12}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	p := NewBucketedProvider(inner, 5*time.Minute, 10, clock, metrics)

	w1, err := p.CurrentWeather(context.Background(), "London", domain.QueryOptions{Units: "metric"})
	require.NoError(t, err)

	inner.temp = 99
	clock.Advance(time.Minute)
	w2, err := p.CurrentWeather(context.Background(), "  LONDON ", domain.QueryOptions{Units: "metric"})
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, 1, inner.currentCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("weather", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("weather", "miss")), 0)
}

func TestBucketedProvider_NewBucketRefetches(t *testing.T) {
	inner := &countingProvider{temp: 12}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 12, 4, 0, 0, time.UTC))
	p := NewBucketedProvider(inner, 5*time.Minute, 10, clock, nil)

	_, err := p.CurrentWeather(context.Background(), "London", domain.QueryOptions{})
	require.NoError(t, err)

	inner.temp = 14
	clock.Advance(time.Minute) // 12:05 starts the next bucket
	w, err := p.CurrentWeather(context.Background(), "London", domain.QueryOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 14, w.Temperature, 0)
	assert.Equal(t, 2, inner.currentCalls)
}

func TestBucketedProvider_OptionsArePartOfTheKey(t *testing.T) {
	inner := &countingProvider{}
	p := NewBucketedProvider(inner, time.Hour, 10, clockwork.NewFakeClock(), nil)

	_, _ = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{Units: "metric"})
	_, _ = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{Units: "imperial"})
	_, _ = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{Units: "metric", Lang: "fr"})
	_, _ = p.CurrentWeather(context.Background(), "Berlin", domain.QueryOptions{Units: "metric"})

	assert.Equal(t, 4, inner.currentCalls)
}

func TestBucketedProvider_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: &domain.NetworkError{Op: "weather request", Err: errors.New("boom")}}
	p := NewBucketedProvider(inner, time.Hour, 10, clockwork.NewFakeClock(), nil)

	_, err := p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{})
	require.Error(t, err)

	inner.err = nil
	_, err = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.currentCalls)
}

func TestBucketedProvider_ForecastKeyedByHours(t *testing.T) {
	inner := &countingProvider{}
	p := NewBucketedProvider(inner, time.Hour, 10, clockwork.NewFakeClock(), nil)

	a, err := p.HourlyForecast(context.Background(), "Oslo", 3, domain.QueryOptions{})
	require.NoError(t, err)
	b, err := p.HourlyForecast(context.Background(), "Oslo", 3, domain.QueryOptions{})
	require.NoError(t, err)
	c, err := p.HourlyForecast(context.Background(), "Oslo", 6, domain.QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, c, 6)
	assert.Equal(t, 2, inner.forecastCalls)
}

func TestBucketedProvider_ForecastHitIsACopy(t *testing.T) {
	inner := &countingProvider{temp: 5}
	p := NewBucketedProvider(inner, time.Hour, 10, clockwork.NewFakeClock(), nil)

	first, err := p.HourlyForecast(context.Background(), "Oslo", 2, domain.QueryOptions{})
	require.NoError(t, err)
	first[0].Temperature = -40

	second, err := p.HourlyForecast(context.Background(), "Oslo", 2, domain.QueryOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 5, second[0].Temperature, 0)
}

func TestBucketedProvider_ZeroWindowDisables(t *testing.T) {
	inner := &countingProvider{}
	p := NewBucketedProvider(inner, 0, 10, nil, nil)

	_, _ = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{})
	_, _ = p.CurrentWeather(context.Background(), "Paris", domain.QueryOptions{})
	_, _ = p.HourlyForecast(context.Background(), "Paris", 1, domain.QueryOptions{})
	_, _ = p.HourlyForecast(context.Background(), "Paris", 1, domain.QueryOptions{})

	assert.Equal(t, 2, inner.currentCalls)
	assert.Equal(t, 2, inner.forecastCalls)
}

// --- LRU unit tests ---

func TestLRU_BasicGetPut(t *testing.T) {
	c := newLRU[string](3)

	c.put("a", "A")
	c.put("b", "B")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRU_Eviction(t *testing.T) {
	c := newLRU[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")
	assert.Equal(t, 2, c.len())

	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", v)
}

func TestLRU_AccessPromotesEntry(t *testing.T) {
	c := newLRU[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.get("a")
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := newLRU[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.len())
}
