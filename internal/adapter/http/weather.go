package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-apps/internal/domain"
)

const (
	defaultForecastHours = 6
	maxForecastHours     = 12
	defaultHistoryLimit  = 10
	maxHistoryLimit      = 100
	maxBodyBytes         = 64 << 10
)

// Locator detects the caller's city.
type Locator interface {
	DetectCity(ctx context.Context) (string, error)
}

// Advisor turns a reading into a short tip.
type Advisor interface {
	Advise(ctx context.Context, w domain.CurrentWeather) (string, error)
}

// HistoryReader returns the most recent stored observations for a city.
type HistoryReader interface {
	Recent(ctx context.Context, city string, limit int) ([]domain.Observation, error)
}

// WeatherAPI serves the weather JSON endpoints.
type WeatherAPI struct {
	provider  domain.WeatherProvider
	memoized  domain.WeatherProvider
	locator   Locator
	advisor   Advisor
	adviceErr error
	history   HistoryReader
	logger    *slog.Logger
}

// WeatherAPIOption configures optional WeatherAPI dependencies.
type WeatherAPIOption func(*WeatherAPI)

// WithMemoized serves GET /weather/{city} through p instead of the plain provider.
func WithMemoized(p domain.WeatherProvider) WeatherAPIOption {
	return func(a *WeatherAPI) { a.memoized = p }
}

// WithLocator enables IP based city detection.
func WithLocator(l Locator) WeatherAPIOption {
	return func(a *WeatherAPI) { a.locator = l }
}

// WithAdvisor enables POST /ai-advice. A non-nil err records why no advisor
// could be built and is reported to callers instead.
func WithAdvisor(adv Advisor, err error) WeatherAPIOption {
	return func(a *WeatherAPI) {
		a.advisor = adv
		a.adviceErr = err
	}
}

// WithHistory enables GET /history/{city}.
func WithHistory(h HistoryReader) WeatherAPIOption {
	return func(a *WeatherAPI) { a.history = h }
}

// NewWeatherAPI creates the weather endpoints backed by provider.
func NewWeatherAPI(provider domain.WeatherProvider, logger *slog.Logger, opts ...WeatherAPIOption) *WeatherAPI {
	a := &WeatherAPI{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.memoized == nil {
		a.memoized = provider
	}
	return a
}

func (a *WeatherAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /weather/{city}", a.handleCityWeather)
	mux.HandleFunc("GET /weather", a.handleWeather)
	mux.HandleFunc("POST /multi-weather", a.handleMultiWeather)
	mux.HandleFunc("GET /forecast", a.handleForecast)
	mux.HandleFunc("POST /ai-advice", a.handleAdvice)
	mux.HandleFunc("GET /detect-city", a.handleDetectCity)
	mux.HandleFunc("GET /history/{city}", a.handleHistory)
}

// summary is the compact reading served by GET /weather/{city}.
type summary struct {
	City          string  `json:"city"`
	Temp          float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Clouds        int     `json:"clouds"`
}

func (a *WeatherAPI) handleCityWeather(w http.ResponseWriter, r *http.Request) {
	opts, ok := a.queryOptions(w, r)
	if !ok {
		return
	}
	data, err := a.memoized.CurrentWeather(r.Context(), r.PathValue("city"), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary{
		City:          data.City,
		Temp:          data.Temperature,
		FeelsLike:     data.FeelsLike,
		Humidity:      data.Humidity,
		Precipitation: data.PrecipitationMM,
		Clouds:        data.Clouds,
	})
}

func (a *WeatherAPI) handleWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("City query parameter is required."))
		return
	}
	opts, ok := a.queryOptions(w, r)
	if !ok {
		return
	}
	data, err := a.provider.CurrentWeather(r.Context(), city, opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, data)
}

func (a *WeatherAPI) handleMultiWeather(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Cities []any `json:"cities"`
	}
	if err := decodeBody(r, &payload); err != nil || len(payload.Cities) == 0 {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("Provide a non-empty list of cities."))
		return
	}
	opts, ok := a.queryOptions(w, r)
	if !ok {
		return
	}

	cities := make([]string, 0, len(payload.Cities))
	for _, c := range payload.Cities {
		if c != nil {
			cities = append(cities, fmt.Sprint(c))
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]domain.CityWeather{
		"results": domain.FetchMany(r.Context(), a.provider, cities, opts),
	})
}

func (a *WeatherAPI) handleForecast(w http.ResponseWriter, r *http.Request) {
	hours := defaultForecastHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("hours must be an integer."))
			return
		}
		hours = min(n, maxForecastHours)
	}
	opts, ok := a.queryOptions(w, r)
	if !ok {
		return
	}

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		detected, err := a.detectCity(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		city = detected
	}

	entries, err := a.provider.HourlyForecast(r.Context(), city, hours, opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ForecastEntry{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"city": city, "forecast": entries})
}

func (a *WeatherAPI) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		City any `json:"city"`
	}
	_ = decodeBody(r, &payload)
	city := ""
	if payload.City != nil {
		city = strings.TrimSpace(fmt.Sprint(payload.City))
	}
	if city == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("City is required."))
		return
	}

	data, err := a.provider.CurrentWeather(r.Context(), city, domain.QueryOptions{})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.advisor == nil {
		reason := a.adviceErr
		if reason == nil {
			reason = errors.New("no advisor configured")
		}
		sharedobs.WriteJSON(w, http.StatusBadGateway, errorBody("AI service unavailable: "+reason.Error()))
		return
	}
	tip, err := a.advisor.Advise(r.Context(), data)
	if err != nil {
		a.logger.Warn("ai advice failed", "city", city, "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, errorBody("AI service unavailable: "+err.Error()))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"city": city, "advice": tip})
}

func (a *WeatherAPI) handleDetectCity(w http.ResponseWriter, r *http.Request) {
	city, err := a.detectCity(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"city": city})
}

func (a *WeatherAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, errorBody("Observation history is not enabled (set HISTORY_PATH)."))
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer."))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	city := r.PathValue("city")
	observations, err := a.history.Recent(r.Context(), city, limit)
	if err != nil {
		a.logger.Error("history lookup failed", "city", city, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody("Could not read observation history."))
		return
	}
	if observations == nil {
		observations = []domain.Observation{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"city": city, "observations": observations})
}

func (a *WeatherAPI) detectCity(ctx context.Context) (string, error) {
	if a.locator == nil {
		return "", &domain.LocationError{Msg: "city detection is not available"}
	}
	return a.locator.DetectCity(ctx)
}

// queryOptions reads the optional units and lang parameters.
func (a *WeatherAPI) queryOptions(w http.ResponseWriter, r *http.Request) (domain.QueryOptions, bool) {
	q := r.URL.Query()
	opts := domain.QueryOptions{
		Units: strings.ToLower(strings.TrimSpace(q.Get("units"))),
		Lang:  strings.TrimSpace(q.Get("lang")),
	}
	switch opts.Units {
	case "", "metric", "imperial", "standard":
		return opts, true
	default:
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody("units must be one of metric, imperial, standard."))
		return opts, false
	}
}

// writeError maps a weather failure onto an HTTP status.
func (a *WeatherAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("weather request failed", "path", r.URL.Path, "error", err)
	} else {
		a.logger.Debug("weather request rejected", "path", r.URL.Path, "error", err)
	}
	sharedobs.WriteJSON(w, status, errorBody(err.Error()))
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindConfiguration:
		return http.StatusInternalServerError
	case domain.KindNetwork:
		return http.StatusBadGateway
	case domain.KindUpstream:
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) && upErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case domain.KindLocation, domain.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}
