package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Observation is a CurrentWeather reading captured for a query at a point in
// time. The watcher publishes and stores observations; the client never builds them.
type Observation struct {
	ID         string         `json:"id" yaml:"id"`
	Query      string         `json:"query" yaml:"query"`
	Units      string         `json:"units" yaml:"units"`
	Lang       string         `json:"lang" yaml:"lang"`
	ObservedAt time.Time      `json:"observed_at" yaml:"observed_at"`
	Weather    CurrentWeather `json:"weather" yaml:"weather"`
}

// NewObservation stamps w with the current time and a deterministic ID.
func NewObservation(query string, opts QueryOptions, w CurrentWeather) Observation {
	observedAt := clock.Now().UTC().Truncate(time.Second)
	return Observation{
		ID:         observationID(query, opts, observedAt),
		Query:      query,
		Units:      opts.Units,
		Lang:       opts.Lang,
		ObservedAt: observedAt,
		Weather:    w,
	}
}

// observationID hashes query|units|lang|minute so that repeated captures within
// the same minute collapse to one record downstream.
func observationID(query string, opts QueryOptions, observedAt time.Time) string {
	key := fmt.Sprintf("%s|%s|%s|%s",
		NormalizeCity(query), opts.Units, opts.Lang,
		observedAt.Truncate(time.Minute).Format(time.RFC3339))
	sum := sha256.Sum256([]byte(key))
	return "obs-" + hex.EncodeToString(sum[:8])
}

// NormalizeCity lower-cases and trims a city query for use as a lookup key.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
