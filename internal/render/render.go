// Package render writes weather results for terminals and scripts.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/weather-apps/internal/domain"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a -format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (allowed: text, json, yaml)", s)
	}
}

const clockLayout = "15:04 UTC"

type forecastDoc struct {
	City     string                 `json:"city" yaml:"city"`
	Forecast []domain.ForecastEntry `json:"forecast" yaml:"forecast"`
}

type multiDoc struct {
	Results []domain.CityWeather `json:"results" yaml:"results"`
}

type adviceDoc struct {
	City   string `json:"city" yaml:"city"`
	Advice string `json:"advice" yaml:"advice"`
}

type historyDoc struct {
	Observations []domain.Observation `json:"observations" yaml:"observations"`
}

// Current writes one reading.
func Current(w io.Writer, f Format, data domain.CurrentWeather, units string) error {
	if f != FormatText {
		return encode(w, f, data)
	}
	temp, speed := domain.UnitLabels(units)
	band := domain.TemperatureBand(domain.ToCelsius(data.Temperature, units))

	tw := newTable(w)
	fmt.Fprintf(tw, "City:\t%s\n", data.City)
	fmt.Fprintf(tw, "Conditions:\t%s\n", data.Description)
	fmt.Fprintf(tw, "Temperature:\t%.1f%s (%s)\n", data.Temperature, temp, band)
	fmt.Fprintf(tw, "Feels like:\t%.1f%s\n", data.FeelsLike, temp)
	fmt.Fprintf(tw, "Humidity:\t%d%%\n", data.Humidity)
	fmt.Fprintf(tw, "Pressure:\t%d hPa\n", data.Pressure)
	fmt.Fprintf(tw, "Wind:\t%.1f %s\n", data.WindSpeed, speed)
	fmt.Fprintf(tw, "Clouds:\t%d%%\n", data.Clouds)
	fmt.Fprintf(tw, "Precipitation:\t%.1f mm\n", data.PrecipitationMM)
	fmt.Fprintf(tw, "Sunrise:\t%s\n", data.SunriseTime().Format(clockLayout))
	fmt.Fprintf(tw, "Sunset:\t%s\n", data.SunsetTime().Format(clockLayout))
	return tw.Flush()
}

// Forecast writes the forecast for city as a table.
func Forecast(w io.Writer, f Format, city string, entries []domain.ForecastEntry, units string) error {
	if entries == nil {
		entries = []domain.ForecastEntry{}
	}
	if f != FormatText {
		return encode(w, f, forecastDoc{City: city, Forecast: entries})
	}
	temp, _ := domain.UnitLabels(units)

	fmt.Fprintf(w, "Forecast for %s\n", city)
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No forecast entries.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTEMP\tFEELS LIKE\tCONDITIONS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%.1f%s\t%.1f%s\t%s\n",
			e.Time().Format("Mon "+clockLayout), e.Temperature, temp, e.FeelsLike, temp, e.Description)
	}
	return tw.Flush()
}

// Multi writes a multi-city comparison. Failed lookups are listed with their error.
func Multi(w io.Writer, f Format, results []domain.CityWeather, units string) error {
	if results == nil {
		results = []domain.CityWeather{}
	}
	if f != FormatText {
		return encode(w, f, multiDoc{Results: results})
	}
	temp, speed := domain.UnitLabels(units)

	tw := newTable(w)
	fmt.Fprintln(tw, "CITY\tTEMP\tFEELS LIKE\tHUMIDITY\tWIND\tCONDITIONS")
	for _, r := range results {
		if r.Data == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %s\n", r.City, r.Error)
			continue
		}
		d := r.Data
		fmt.Fprintf(tw, "%s\t%.1f%s\t%.1f%s\t%d%%\t%.1f %s\t%s\n",
			d.City, d.Temperature, temp, d.FeelsLike, temp, d.Humidity, d.WindSpeed, speed, d.Description)
	}
	return tw.Flush()
}

// Advice writes an AI tip for city.
func Advice(w io.Writer, f Format, city, tip string) error {
	if f != FormatText {
		return encode(w, f, adviceDoc{City: city, Advice: tip})
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", city, tip)
	return err
}

// History writes stored observations, newest first as given.
func History(w io.Writer, f Format, observations []domain.Observation, units string) error {
	if observations == nil {
		observations = []domain.Observation{}
	}
	if f != FormatText {
		return encode(w, f, historyDoc{Observations: observations})
	}
	if len(observations) == 0 {
		_, err := fmt.Fprintln(w, "No observations recorded.")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "OBSERVED\tCITY\tTEMP\tHUMIDITY\tCONDITIONS")
	for _, o := range observations {
		temp, _ := domain.UnitLabels(firstNonEmpty(o.Units, units))
		fmt.Fprintf(tw, "%s\t%s\t%.1f%s\t%d%%\t%s\n",
			o.ObservedAt.UTC().Format(time.DateTime), o.Weather.City, o.Weather.Temperature, temp,
			o.Weather.Humidity, o.Weather.Description)
	}
	return tw.Flush()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
