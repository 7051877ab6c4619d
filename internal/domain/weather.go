package domain

import (
	"context"
	"time"
)

// DefaultIcon is the OpenWeather icon code used when the upstream omits one.
const DefaultIcon = "01d"

// UnknownCity is the city name used when the upstream omits one.
const UnknownCity = "Unknown"

// CurrentWeather holds the conditions reported by the "current weather" endpoint.
type CurrentWeather struct {
	City            string  `json:"city" yaml:"city"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	FeelsLike       float64 `json:"feels_like" yaml:"feels_like"`
	Pressure        int     `json:"pressure" yaml:"pressure"` // hPa
	Humidity        int     `json:"humidity" yaml:"humidity"` // 0-100
	WindSpeed       float64 `json:"wind_speed" yaml:"wind_speed"`
	Description     string  `json:"description" yaml:"description"`
	Icon            string  `json:"icon" yaml:"icon"`
	Sunrise         int64   `json:"sunrise" yaml:"sunrise"` // unix seconds
	Sunset          int64   `json:"sunset" yaml:"sunset"`   // unix seconds
	Clouds          int     `json:"clouds" yaml:"clouds"`   // 0-100
	PrecipitationMM float64 `json:"precipitation" yaml:"precipitation"`
}

// SunriseTime returns the sunrise as a UTC time.
func (w CurrentWeather) SunriseTime() time.Time { return time.Unix(w.Sunrise, 0).UTC() }

// SunsetTime returns the sunset as a UTC time.
func (w CurrentWeather) SunsetTime() time.Time { return time.Unix(w.Sunset, 0).UTC() }

// ForecastEntry is one step of the hourly (3-hour) forecast.
type ForecastEntry struct {
	Timestamp   int64   `json:"timestamp" yaml:"timestamp"` // unix seconds
	Temperature float64 `json:"temperature" yaml:"temperature"`
	FeelsLike   float64 `json:"feels_like" yaml:"feels_like"`
	Description string  `json:"description" yaml:"description"`
	Icon        string  `json:"icon" yaml:"icon"`
}

// Time returns the forecast timestamp as a UTC time.
func (f ForecastEntry) Time() time.Time { return time.Unix(f.Timestamp, 0).UTC() }

// CityWeather is the outcome of one lookup in a multi-city query: either Data
// or Error is set.
type CityWeather struct {
	City  string          `json:"city" yaml:"city"`
	Data  *CurrentWeather `json:"data,omitempty" yaml:"data,omitempty"`
	Error string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// QueryOptions carries per-call overrides. Empty fields fall back to the
// provider's defaults.
type QueryOptions struct {
	Units string
	Lang  string
}

// WeatherProvider fetches weather data for a city name.
type WeatherProvider interface {
	// CurrentWeather returns the current conditions for city.
	CurrentWeather(ctx context.Context, city string, opts QueryOptions) (CurrentWeather, error)

	// HourlyForecast returns at most hours forecast entries for city, in upstream order.
	HourlyForecast(ctx context.Context, city string, hours int, opts QueryOptions) ([]ForecastEntry, error)
}

// Temperature bands used by terminal renderers.
const (
	BandCold = "cold"
	BandMild = "mild"
	BandHot  = "hot"
)

// TemperatureBand classifies a Celsius temperature: ≥30 hot, ≤10 cold, mild otherwise.
func TemperatureBand(celsius float64) string {
	switch {
	case celsius >= 30:
		return BandHot
	case celsius <= 10:
		return BandCold
	default:
		return BandMild
	}
}

// ToCelsius converts a temperature reported in units to Celsius.
func ToCelsius(value float64, units string) float64 {
	switch units {
	case "imperial":
		return (value - 32) * 5 / 9
	case "standard":
		return value - 273.15
	default:
		return value
	}
}

// UnitLabels returns the temperature and wind speed symbols for units.
func UnitLabels(units string) (temperature, speed string) {
	switch units {
	case "imperial":
		return "°F", "mph"
	case "standard":
		return "K", "m/s"
	default:
		return "°C", "m/s"
	}
}
