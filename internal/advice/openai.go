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
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdvisor asks an OpenAI chat model for advice.
type OpenAIAdvisor struct {
	client  openai.Client
	model   string
	units   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOpenAIAdvisor creates an advisor using cfg.OpenAIAPIKey and cfg.OpenAIModel.
func NewOpenAIAdvisor(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, opts ...option.RequestOption) *OpenAIAdvisor {
	opts = append([]option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &OpenAIAdvisor{
		client:  openai.NewClient(opts...),
		model:   cfg.OpenAIModel,
		units:   cfg.Units,
		metrics: metrics,
		logger:  logger,
	}
}

func (a *OpenAIAdvisor) Advise(ctx context.Context, w domain.CurrentWeather) (tip string, err error) {
	defer func() { record(a.metrics, "openai", err) }()

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(weatherContext(w, a.units)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	tip = strings.TrimSpace(resp.Choices[0].Message.Content)
	if tip == "" {
		return "", errors.New("openai returned an empty answer")
	}
	a.logger.Debug("generated advice", "provider", "openai", "model", a.model, "city", w.City)
	return tip, nil
}
