package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/weather-apps/internal/adapter/ipgeo"
	"github.com/couchcryptid/weather-apps/internal/advice"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/render"
	"github.com/couchcryptid/weather-apps/internal/storage/sqlite"
)

const (
	defaultForecastHours = 12
	defaultHistoryLimit  = 10
)

// queryFlags are shared by the commands that call OpenWeatherMap.
type queryFlags struct {
	units  string
	lang   string
	format string
}

func (q *queryFlags) options() domain.QueryOptions {
	return domain.QueryOptions{Units: strings.ToLower(q.units), Lang: q.lang}
}

// validate checks flag values and returns the output format.
func (q *queryFlags) validate() (render.Format, error) {
	switch strings.ToLower(q.units) {
	case "", "metric", "imperial", "standard":
	default:
		return "", fmt.Errorf("unknown units %q (allowed: metric, imperial, standard)", q.units)
	}
	return render.ParseFormat(q.format)
}

// effectiveUnits is the unit system a response was requested in.
func effectiveUnits(e *env, opts domain.QueryOptions) string {
	if opts.Units != "" {
		return opts.Units
	}
	return e.cfg.Units
}

func runCurrent(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "current")
	var q queryFlags
	fs.StringVar(&q.units, "units", "", "metric, imperial or standard (default from OPENWEATHER_UNITS)")
	fs.StringVar(&q.lang, "lang", "", "language for descriptions (default from OPENWEATHER_LANG)")
	fs.StringVar(&q.format, "format", "text", "output format: text, json or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := q.validate()
	if err != nil {
		return usagef(e, "current", "%v", err)
	}
	// Words form one city name; commas separate cities.
	cities := sharedcfg.ParseBrokers(strings.Join(fs.Args(), " "))
	if len(cities) == 0 {
		return usagef(e, "current", "at least one city is required")
	}

	provider := newProvider(e)
	opts := q.options()
	units := effectiveUnits(e, opts)

	if len(cities) == 1 {
		data, err := provider.CurrentWeather(ctx, cities[0], opts)
		if err != nil {
			return err
		}
		return render.Current(e.stdout, format, data, units)
	}

	results := domain.FetchMany(ctx, provider, cities, opts)
	if err := render.Multi(e.stdout, format, results, units); err != nil {
		return err
	}
	for _, r := range results {
		if r.Error == "" {
			return nil
		}
	}
	return errors.New("no city could be looked up")
}

func runForecast(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "forecast")
	var q queryFlags
	hours := fs.Int("hours", defaultForecastHours, "number of forecast entries to show")
	fs.StringVar(&q.units, "units", "", "metric, imperial or standard (default from OPENWEATHER_UNITS)")
	fs.StringVar(&q.lang, "lang", "", "language for descriptions (default from OPENWEATHER_LANG)")
	fs.StringVar(&q.format, "format", "text", "output format: text, json or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := q.validate()
	if err != nil {
		return usagef(e, "forecast", "%v", err)
	}
	if *hours < 1 {
		return usagef(e, "forecast", "-hours must be at least 1")
	}

	city := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(city) == "" {
		detected, err := ipgeo.NewLocator(e.cfg, e.logger).DetectCity(ctx)
		if err != nil {
			return err
		}
		e.logger.Info("detected city", "city", detected)
		city = detected
	}

	opts := q.options()
	entries, err := newProvider(e).HourlyForecast(ctx, city, *hours, opts)
	if err != nil {
		return err
	}
	return render.Forecast(e.stdout, format, city, entries, effectiveUnits(e, opts))
}

func runAdvice(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "advice")
	formatFlag := fs.String("format", "text", "output format: text, json or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := render.ParseFormat(*formatFlag)
	if err != nil {
		return usagef(e, "advice", "%v", err)
	}
	city := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(city) == "" {
		return usagef(e, "advice", "a city is required")
	}

	// Resolve the advisor first so a missing AI key fails before any request.
	advisor, err := advice.New(ctx, e.cfg, e.metrics, e.logger)
	if err != nil {
		return err
	}
	data, err := newProvider(e).CurrentWeather(ctx, city, domain.QueryOptions{})
	if err != nil {
		return err
	}
	tip, err := advisor.Advise(ctx, data)
	if err != nil {
		return fmt.Errorf("AI service unavailable: %w", err)
	}
	return render.Advice(e.stdout, format, data.City, tip)
}

func runLocate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "locate")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	city, err := ipgeo.NewLocator(e.cfg, e.logger).DetectCity(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, city)
	return nil
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "history")
	limit := fs.Int("limit", defaultHistoryLimit, "maximum number of observations")
	formatFlag := fs.String("format", "text", "output format: text, json or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := render.ParseFormat(*formatFlag)
	if err != nil {
		return usagef(e, "history", "%v", err)
	}
	if *limit < 1 {
		return usagef(e, "history", "-limit must be at least 1")
	}
	city := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(city) == "" {
		return usagef(e, "history", "a city is required")
	}
	if !e.cfg.HistoryEnabled() {
		return errors.New("history is disabled (set HISTORY_PATH)")
	}

	store, err := sqlite.Open(ctx, e.cfg.HistoryPath, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			e.logger.Error("history store close error", "error", err)
		}
	}()

	observations, err := store.Recent(ctx, city, *limit)
	if err != nil {
		return err
	}
	return render.History(e.stdout, format, observations, e.cfg.Units)
}
