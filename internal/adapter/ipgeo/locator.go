package ipgeo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
)

const detectTimeout = 5 * time.Second

// Locator detects the caller's city from its public IP using an ip-api.com
// compatible endpoint.
type Locator struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLocator creates a Locator that queries cfg.IPGeoURL.
func NewLocator(cfg *config.Config, logger *slog.Logger) *Locator {
	return &Locator{
		url:        cfg.IPGeoURL,
		httpClient: &http.Client{Timeout: detectTimeout},
		logger:     logger,
	}
}

type lookupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	City    string `json:"city"`
}

// DetectCity returns the city of the machine's public IP. Every failure is
// reported as a *domain.LocationError.
func (l *Locator) DetectCity(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return "", &domain.LocationError{Msg: "could not build geolocation request", Err: err}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", &domain.LocationError{Msg: "could not contact geolocation service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &domain.LocationError{Msg: "geolocation service returned " + resp.Status}
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", &domain.LocationError{Msg: "could not decode geolocation response", Err: err}
	}

	city := strings.TrimSpace(body.City)
	if (body.Status != "" && body.Status != "success") || city == "" {
		l.logger.Debug("geolocation lookup failed", "status", body.Status, "message", body.Message)
		return "", &domain.LocationError{Msg: "unable to detect current city automatically"}
	}

	l.logger.Debug("detected city", "city", city)
	return city, nil
}
