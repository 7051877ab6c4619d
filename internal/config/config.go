package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application settings, populated from environment variables
// (optionally seeded from a .env file). It is built once in main and passed
// to every component that needs it.
type Config struct {
	// OpenWeatherMap settings.
	OpenWeatherAPIKey  string
	Units              string
	Language           string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration
	RateLimit          float64 // requests per second, 0 disables
	RateBurst          int

	// AI advice settings.
	AIProvider   string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	IPGeoURL string

	HTTPAddr        string
	LogLevel        slog.Level
	LogFormat       string
	ShutdownTimeout time.Duration

	// Memoization used by the HTTP API only.
	CacheWindow time.Duration
	CacheSize   int

	// Observation sinks and the watcher.
	KafkaBrokers  []string
	KafkaTopic    string
	HistoryPath   string
	WatchCities   []string
	WatchSchedule string
}

// HasOpenWeatherKey reports whether an OpenWeatherMap API key is configured.
func (c *Config) HasOpenWeatherKey() bool { return c.OpenWeatherAPIKey != "" }

// HasOpenAIKey reports whether an OpenAI API key is configured.
func (c *Config) HasOpenAIKey() bool { return c.OpenAIAPIKey != "" }

// HasGeminiKey reports whether a Gemini API key is configured.
func (c *Config) HasGeminiKey() bool { return c.GeminiAPIKey != "" }

// KafkaEnabled reports whether observations should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// HistoryEnabled reports whether observations should be stored.
func (c *Config) HistoryEnabled() bool { return c.HistoryPath != "" }

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file (ENV_FILE, default ".env") is loaded first if present; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	envFile := sharedcfg.EnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	units := strings.ToLower(sharedcfg.EnvOrDefault("OPENWEATHER_UNITS", "metric"))
	if !validUnits(units) {
		return nil, fmt.Errorf("invalid OPENWEATHER_UNITS %q (allowed: metric, imperial, standard)", units)
	}

	timeout, err := parsePositiveDuration("OPENWEATHER_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheWindow, err := time.ParseDuration(sharedcfg.EnvOrDefault("CACHE_WINDOW", "5m"))
	if err != nil || cacheWindow < 0 {
		return nil, errors.New("invalid CACHE_WINDOW")
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("OPENWEATHER_RATE_LIMIT", "0"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid OPENWEATHER_RATE_LIMIT")
	}

	level, err := parseLogLevel(sharedcfg.EnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	logFormat := strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json"))
	if logFormat != "json" && logFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", logFormat)
	}

	aiProvider := strings.ToLower(sharedcfg.EnvOrDefault("AI_PROVIDER", "auto"))
	switch aiProvider {
	case "auto", "openai", "gemini":
	default:
		return nil, fmt.Errorf("invalid AI_PROVIDER %q (allowed: auto, openai, gemini)", aiProvider)
	}

	schedule := sharedcfg.EnvOrDefault("WATCH_SCHEDULE", "*/15 * * * *")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid WATCH_SCHEDULE %q: %w", schedule, err)
	}

	cfg := &Config{
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		Units:              units,
		Language:           sharedcfg.EnvOrDefault("OPENWEATHER_LANG", "en"),
		OpenWeatherBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"), "/"),
		OpenWeatherTimeout: timeout,
		RateLimit:          rateLimit,
		RateBurst:          parsePositiveInt("OPENWEATHER_RATE_BURST", 5),

		AIProvider:   aiProvider,
		OpenAIAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:  sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:  sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),

		IPGeoURL: sharedcfg.EnvOrDefault("IPGEO_URL", "http://ip-api.com/json"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        level,
		LogFormat:       logFormat,
		ShutdownTimeout: shutdownTimeout,

		CacheWindow: cacheWindow,
		CacheSize:   parsePositiveInt("CACHE_SIZE", 256),

		KafkaBrokers:  sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-observations"),
		HistoryPath:   strings.TrimSpace(os.Getenv("HISTORY_PATH")),
		WatchCities:   sharedcfg.ParseBrokers(os.Getenv("WATCH_CITIES")),
		WatchSchedule: schedule,
	}

	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func validUnits(u string) bool {
	switch u {
	case "metric", "imperial", "standard":
		return true
	}
	return false
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
