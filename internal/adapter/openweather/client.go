package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
)

const (
	endpointWeather  = "weather"
	endpointForecast = "forecast"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 4 << 20
)

// Client implements domain.WeatherProvider using the OpenWeatherMap 2.5 API.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	apiKey     string
	units      string
	lang       string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client whose defaults come from cfg.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: cfg.OpenWeatherAPIKey,
		units:  cfg.Units,
		lang:   cfg.Language,
		httpClient: &http.Client{
			Timeout: cfg.OpenWeatherTimeout,
		},
		baseURL: cfg.OpenWeatherBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// WithDefaults returns a copy of the client using units and lang as its
// client-level defaults. Empty values keep the current default. The copy
// shares the underlying connection pool.
func (c *Client) WithDefaults(units, lang string) *Client {
	cp := *c
	if units != "" {
		cp.units = units
	}
	if lang != "" {
		cp.lang = lang
	}
	return &cp
}

// CurrentWeather fetches the current conditions for city.
func (c *Client) CurrentWeather(ctx context.Context, city string, opts domain.QueryOptions) (domain.CurrentWeather, error) {
	var payload currentResponse
	if err := c.fetch(ctx, endpointWeather, city, opts, &payload); err != nil {
		return domain.CurrentWeather{}, err
	}
	return parseCurrent(payload), nil
}

// HourlyForecast fetches the forecast for city and returns its first hours
// entries in upstream order. A negative hours is treated as zero.
func (c *Client) HourlyForecast(ctx context.Context, city string, hours int, opts domain.QueryOptions) ([]domain.ForecastEntry, error) {
	var payload forecastResponse
	if err := c.fetch(ctx, endpointForecast, city, opts, &payload); err != nil {
		return nil, err
	}
	return parseForecast(payload, hours), nil
}

// fetch runs one GET against endpoint and decodes a validated payload into dst.
func (c *Client) fetch(ctx context.Context, endpoint, city string, opts domain.QueryOptions, dst any) (err error) {
	start := time.Now()
	defer func() {
		c.observe(endpoint, start, err)
	}()

	if c.apiKey == "" {
		return &domain.ConfigurationError{Msg: "missing API key (set OPENWEATHER_API_KEY)"}
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return domain.ErrEmptyCity
	}

	params := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {firstNonEmpty(opts.Units, c.units)},
		"lang":  {firstNonEmpty(opts.Lang, c.lang)},
	}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: endpoint + " request", Err: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.NetworkError{Op: "read " + endpoint + " response", Err: redact(err, c.apiKey)}
	}

	c.logger.Debug("openweather response",
		"endpoint", endpoint,
		"city", city,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return decode(resp.StatusCode, body, dst)
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// decode validates the HTTP status and the payload "cod" before unmarshalling
// body into dst.
func decode(status int, body []byte, dst any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= http.StatusBadRequest {
			return &domain.UpstreamError{StatusCode: status, Message: unknownError, Err: err}
		}
		return &domain.UpstreamError{StatusCode: status, Message: "malformed response payload", Err: err}
	}

	if status >= http.StatusBadRequest || !env.Cod.ok() {
		msg := env.Message
		if msg == "" {
			msg = unknownError
		}
		return &domain.UpstreamError{StatusCode: status, Code: string(env.Cod), Message: msg}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &domain.UpstreamError{StatusCode: status, Code: string(env.Cod), Message: "malformed response payload", Err: err}
	}
	return nil
}

// redact strips the API key from URLs embedded in transport errors.
func redact(err error, apiKey string) error {
	var urlErr *url.Error
	if apiKey != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, url.QueryEscape(apiKey), "REDACTED")
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
