package advice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"google.golang.org/genai"
)

// GeminiAdvisor asks a Gemini model for advice.
type GeminiAdvisor struct {
	client  *genai.Client
	model   string
	units   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGeminiAdvisor creates an advisor using cfg.GeminiAPIKey and cfg.GeminiModel.
func NewGeminiAdvisor(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*GeminiAdvisor, error) {
	return newGeminiAdvisor(ctx, cfg, "", metrics, logger)
}

// newGeminiAdvisor lets tests point the client at a fake endpoint.
func newGeminiAdvisor(ctx context.Context, cfg *config.Config, baseURL string, metrics *observability.Metrics, logger *slog.Logger) (*GeminiAdvisor, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", redactKey(err, cfg.GeminiAPIKey))
	}
	return &GeminiAdvisor{
		client:  client,
		model:   cfg.GeminiModel,
		units:   cfg.Units,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (a *GeminiAdvisor) Advise(ctx context.Context, w domain.CurrentWeather) (tip string, err error) {
	defer func() { record(a.metrics, "gemini", err) }()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(weatherContext(w, a.units)),
		}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	tip = strings.TrimSpace(result.Text())
	if tip == "" {
		return "", errors.New("gemini returned an empty answer")
	}
	a.logger.Debug("generated advice", "provider", "gemini", "model", a.model, "city", w.City)
	return tip, nil
}

// redactKey drops apiKey from err's text. genai reports client setup errors
// with the whole ClientConfig, key included.
func redactKey(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), apiKey, "REDACTED"))
}
