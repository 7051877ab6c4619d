// Package advice turns a weather reading into a short, practical tip using a
// hosted language model.
package advice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
)

const systemPrompt = "You are a helpful weather assistant. Based on the metrics provided, " +
	"write one or two short sentences with practical advice."

// Advisor produces a tip for the given conditions.
type Advisor interface {
	Advise(ctx context.Context, w domain.CurrentWeather) (string, error)
}

// New builds the advisor selected by cfg.AIProvider. "auto" prefers OpenAI and
// falls back to Gemini. A missing key is a *domain.ConfigurationError.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (Advisor, error) {
	switch cfg.AIProvider {
	case "openai":
		if !cfg.HasOpenAIKey() {
			return nil, &domain.ConfigurationError{Msg: "OPENAI_API_KEY is required to generate AI weather advice"}
		}
		return NewOpenAIAdvisor(cfg, metrics, logger), nil
	case "gemini":
		if !cfg.HasGeminiKey() {
			return nil, &domain.ConfigurationError{Msg: "GEMINI_API_KEY is required to generate AI weather advice"}
		}
		return gemini(ctx, cfg, metrics, logger)
	default:
		switch {
		case cfg.HasOpenAIKey():
			return NewOpenAIAdvisor(cfg, metrics, logger), nil
		case cfg.HasGeminiKey():
			return gemini(ctx, cfg, metrics, logger)
		}
		return nil, &domain.ConfigurationError{Msg: "OPENAI_API_KEY or GEMINI_API_KEY is required to generate AI weather advice"}
	}
}

var newGemini = NewGeminiAdvisor

// gemini keeps a failed construction from becoming a non-nil Advisor that
// wraps a nil pointer.
func gemini(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (Advisor, error) {
	a, err := newGemini(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// weatherContext formats the reading as the user message sent to the model.
func weatherContext(w domain.CurrentWeather, units string) string {
	temp, speed := domain.UnitLabels(units)
	var b strings.Builder
	fmt.Fprintf(&b, "City: %s\n", w.City)
	fmt.Fprintf(&b, "Temperature: %g%s\n", w.Temperature, temp)
	fmt.Fprintf(&b, "Feels Like: %g%s\n", w.FeelsLike, temp)
	fmt.Fprintf(&b, "Description: %s\n", w.Description)
	fmt.Fprintf(&b, "Humidity: %d%%\n", w.Humidity)
	fmt.Fprintf(&b, "Wind Speed: %g %s\n", w.WindSpeed, speed)
	fmt.Fprintf(&b, "Precipitation (mm): %g", w.PrecipitationMM)
	return b.String()
}

func record(metrics *observability.Metrics, provider string, err error) {
	if metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.AdviceRequests.WithLabelValues(provider, outcome).Inc()
}
