package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/weather-apps/internal/adapter/http"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeProvider struct {
	mu        sync.Mutex
	lastOpts  domain.QueryOptions
	lastHours int
	calls     int
	errs      map[string]error
}

func (f *fakeProvider) CurrentWeather(_ context.Context, city string, opts domain.QueryOptions) (domain.CurrentWeather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOpts = opts
	if err := f.errs[city]; err != nil {
		return domain.CurrentWeather{}, err
	}
	return domain.CurrentWeather{
		City: city, Temperature: 21.5, FeelsLike: 20, Humidity: 40,
		Description: "clear sky", Icon: "01d", Clouds: 5, PrecipitationMM: 0.2,
	}, nil
}

func (f *fakeProvider) HourlyForecast(_ context.Context, city string, hours int, opts domain.QueryOptions) ([]domain.ForecastEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastHours = hours
	f.lastOpts = opts
	if err := f.errs[city]; err != nil {
		return nil, err
	}
	out := make([]domain.ForecastEntry, 0, max(hours, 0))
	for i := 0; i < hours; i++ {
		out = append(out, domain.ForecastEntry{Timestamp: int64(1714132800 + i*10800), Temperature: 10})
	}
	return out, nil
}

type fakeLocator struct {
	city string
	err  error
}

func (f fakeLocator) DetectCity(context.Context) (string, error) { return f.city, f.err }

type fakeAdvisor struct {
	tip string
	err error
}

func (f fakeAdvisor) Advise(_ context.Context, w domain.CurrentWeather) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.tip + " in " + w.City, nil
}

type fakeHistory struct {
	gotCity  string
	gotLimit int
	err      error
}

func (f *fakeHistory) Recent(_ context.Context, city string, limit int) ([]domain.Observation, error) {
	f.gotCity, f.gotLimit = city, limit
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Observation{{
		ID: "obs-1", Query: city, ObservedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Weather: domain.CurrentWeather{City: "London", Temperature: 11},
	}}, nil
}

func newAPIServer(api *httpadapter.WeatherAPI) *httpadapter.Server {
	return httpadapter.NewServer(":0", httpadapter.ReadinessFunc(func(context.Context) error { return nil }), api, observability.DiscardLogger())
}


func do(t *testing.T, srv http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

// --- tests ---

func TestCityWeather_CompactShape(t *testing.T) {
	plain := &fakeProvider{}
	memo := &fakeProvider{}
	srv := newAPIServer(httpadapter.NewWeatherAPI(plain, observability.DiscardLogger(), httpadapter.WithMemoized(memo)))

	rec, body := do(t, srv, http.MethodGet, "/weather/London", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{
		"city": "London", "temp": 21.5, "feels_like": 20.0, "humidity": 40.0,
		"precipitation": 0.2, "clouds": 5.0,
	}, body)
	assert.Equal(t, 1, memo.calls, "compact route is served through the memoized provider")
	assert.Zero(t, plain.calls)
}

func TestCityWeather_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"city not found", &domain.UpstreamError{StatusCode: 404, Code: "404", Message: "city not found"}, http.StatusNotFound},
		{"invalid key", &domain.UpstreamError{StatusCode: 401, Code: "401", Message: "Invalid API key."}, http.StatusBadRequest},
		{"network", &domain.NetworkError{Op: "weather request", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"configuration", &domain.ConfigurationError{Msg: "missing API key"}, http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{errs: map[string]error{"Atlantis": tt.err}}
			srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

			rec, body := do(t, srv, http.MethodGet, "/weather/Atlantis", "")

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestWeather_QueryParameter(t *testing.T) {
	p := &fakeProvider{}
	srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

	rec, body := do(t, srv, http.MethodGet, "/weather?city=Paris&units=Imperial&lang=fr", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paris", body["city"])
	assert.Equal(t, "clear sky", body["description"])
	assert.Equal(t, domain.QueryOptions{Units: "imperial", Lang: "fr"}, p.lastOpts)

	rec, body = do(t, srv, http.MethodGet, "/weather?city=%20", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "City query parameter is required.", body["error"])

	rec, _ = do(t, srv, http.MethodGet, "/weather?city=Paris&units=kelvin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultiWeather(t *testing.T) {
	p := &fakeProvider{errs: map[string]error{
		"Atlantis": &domain.UpstreamError{StatusCode: 404, Message: "city not found"},
	}}
	srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

	rec, body := do(t, srv, http.MethodPost, "/multi-weather", `{"cities": ["London", " ", "Atlantis", null]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)

	first := results[0].(map[string]any)
	assert.Equal(t, "London", first["city"])
	assert.Contains(t, first, "data")
	assert.NotContains(t, first, "error")

	second := results[1].(map[string]any)
	assert.Equal(t, "Atlantis", second["city"])
	assert.Equal(t, "city not found", second["error"])
	assert.NotContains(t, second, "data")
}

func TestMultiWeather_BadPayloads(t *testing.T) {
	srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger()))

	for _, payload := range []string{`{}`, `{"cities": []}`, `{"cities": "London"}`, `not json`} {
		rec, body := do(t, srv, http.MethodPost, "/multi-weather", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, "Provide a non-empty list of cities.", body["error"], payload)
	}
}

func TestForecast(t *testing.T) {
	t.Run("defaults to six hours", func(t *testing.T) {
		p := &fakeProvider{}
		srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

		rec, body := do(t, srv, http.MethodGet, "/forecast?city=Oslo", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Oslo", body["city"])
		assert.Len(t, body["forecast"], 6)
		assert.Equal(t, 6, p.lastHours)
	})

	t.Run("caps at twelve hours", func(t *testing.T) {
		p := &fakeProvider{}
		srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

		rec, _ := do(t, srv, http.MethodGet, "/forecast?city=Oslo&hours=48", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 12, p.lastHours)
	})

	t.Run("zero hours is an empty list", func(t *testing.T) {
		p := &fakeProvider{}
		srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger()))

		rec, body := do(t, srv, http.MethodGet, "/forecast?city=Oslo&hours=0", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, body["forecast"])
	})

	t.Run("invalid hours", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger()))

		rec, _ := do(t, srv, http.MethodGet, "/forecast?city=Oslo&hours=soon", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("detects the city when omitted", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
			httpadapter.WithLocator(fakeLocator{city: "Bergen"})))

		rec, body := do(t, srv, http.MethodGet, "/forecast", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Bergen", body["city"])
	})

	t.Run("detection failure", func(t *testing.T) {
		p := &fakeProvider{}
		srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger(),
			httpadapter.WithLocator(fakeLocator{err: &domain.LocationError{Msg: "unable to detect current city automatically"}})))

		rec, body := do(t, srv, http.MethodGet, "/forecast", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unable to detect current city automatically", body["error"])
		assert.Zero(t, p.calls)
	})
}

func TestAIAdvice(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
			httpadapter.WithAdvisor(fakeAdvisor{tip: "Wear sunglasses"}, nil)))

		rec, body := do(t, srv, http.MethodPost, "/ai-advice", `{"city": "Rome"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"city": "Rome", "advice": "Wear sunglasses in Rome"}, body)
	})

	t.Run("missing city", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger()))

		rec, body := do(t, srv, http.MethodPost, "/ai-advice", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "City is required.", body["error"])
	})

	t.Run("advisor failure is a bad gateway", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
			httpadapter.WithAdvisor(fakeAdvisor{err: errors.New("rate limited")}, nil)))

		rec, body := do(t, srv, http.MethodPost, "/ai-advice", `{"city": "Rome"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "AI service unavailable: rate limited", body["error"])
	})

	t.Run("no advisor configured", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
			httpadapter.WithAdvisor(nil, &domain.ConfigurationError{Msg: "OPENAI_API_KEY or GEMINI_API_KEY is required"})))

		rec, body := do(t, srv, http.MethodPost, "/ai-advice", `{"city": "Rome"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, body["error"], "OPENAI_API_KEY")
	})

	t.Run("weather failure comes first", func(t *testing.T) {
		p := &fakeProvider{errs: map[string]error{"Atlantis": &domain.UpstreamError{StatusCode: 404, Message: "city not found"}}}
		srv := newAPIServer(httpadapter.NewWeatherAPI(p, observability.DiscardLogger(),
			httpadapter.WithAdvisor(fakeAdvisor{tip: "unused"}, nil)))

		rec, _ := do(t, srv, http.MethodPost, "/ai-advice", `{"city": "Atlantis"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDetectCity(t *testing.T) {
	srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
		httpadapter.WithLocator(fakeLocator{city: "Lisbon"})))

	rec, body := do(t, srv, http.MethodGet, "/detect-city", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", body["city"])

	srv = newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger()))
	rec, _ = do(t, srv, http.MethodGet, "/detect-city", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger()))

		rec, _ := do(t, srv, http.MethodGet, "/history/London", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("default and capped limit", func(t *testing.T) {
		h := &fakeHistory{}
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(), httpadapter.WithHistory(h)))

		rec, body := do(t, srv, http.MethodGet, "/history/London", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "London", h.gotCity)
		assert.Equal(t, 10, h.gotLimit)
		assert.Len(t, body["observations"], 1)

		_, _ = do(t, srv, http.MethodGet, "/history/London?limit=500", "")
		assert.Equal(t, 100, h.gotLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(), httpadapter.WithHistory(&fakeHistory{})))

		rec, _ := do(t, srv, http.MethodGet, "/history/London?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		srv := newAPIServer(httpadapter.NewWeatherAPI(&fakeProvider{}, observability.DiscardLogger(),
			httpadapter.WithHistory(&fakeHistory{err: errors.New("disk I/O error")})))

		rec, _ := do(t, srv, http.MethodGet, "/history/London", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
