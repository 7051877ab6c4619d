package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger: JSON on stdout by default, or a
// colorized tint handler on stderr when LOG_FORMAT=text.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "text" {
		return newLogger(os.Stderr, cfg)
	}
	return newLogger(os.Stdout, cfg)
}

// NewStderrLogger builds the same logger but always writes to stderr, for
// one-shot commands whose stdout carries results.
func NewStderrLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

// DiscardLogger returns a logger that drops everything, for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
