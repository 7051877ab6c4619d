package openweather

import (
	"context"

	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a WeatherProvider with a client-side token bucket
// so that bursts of callers stay within the API plan's request quota.
type RateLimitedProvider struct {
	inner   domain.WeatherProvider
	limiter *rate.Limiter
	metrics *observability.Metrics
}

// NewRateLimitedProvider allows rps requests per second with the given burst.
func NewRateLimitedProvider(inner domain.WeatherProvider, rps float64, burst int, metrics *observability.Metrics) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		metrics: metrics,
	}
}

func (r *RateLimitedProvider) CurrentWeather(ctx context.Context, city string, opts domain.QueryOptions) (domain.CurrentWeather, error) {
	if err := r.wait(ctx); err != nil {
		return domain.CurrentWeather{}, err
	}
	return r.inner.CurrentWeather(ctx, city, opts)
}

func (r *RateLimitedProvider) HourlyForecast(ctx context.Context, city string, hours int, opts domain.QueryOptions) ([]domain.ForecastEntry, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.HourlyForecast(ctx, city, hours, opts)
}

func (r *RateLimitedProvider) wait(ctx context.Context) error {
	if r.limiter.Tokens() < 1 && r.metrics != nil {
		r.metrics.RateLimitWaits.Inc()
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return &domain.NetworkError{Op: "rate limit wait", Err: err}
	}
	return nil
}

var (
	_ domain.WeatherProvider = (*Client)(nil)
	_ domain.WeatherProvider = (*RateLimitedProvider)(nil)
)
