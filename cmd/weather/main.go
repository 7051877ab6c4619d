// Command weather looks up current conditions and hourly forecasts from
// OpenWeatherMap, serves them over HTTP, and records scheduled observations.
//
// Usage:
//
//	weather current [-units metric] [-lang en] [-format text] CITY[,CITY...]
//	weather forecast [-hours 12] [CITY]
//	weather serve
//	weather watch [-once]
//	weather list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weather-apps/internal/adapter/openweather"
	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
	"github.com/couchcryptid/weather-apps/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks failures caused by bad arguments rather than runtime errors.
var errUsage = errors.New("usage")

// env carries what every subcommand needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer
	stderr  io.Writer
}

type command struct {
	name    string
	args    string
	summary string
	// needsKey commands refuse to start without an OpenWeather API key.
	needsKey bool
	// longRunning commands get a process logger and registered metrics.
	longRunning bool
	run         func(ctx context.Context, e *env, args []string) error
}

var commands []command

// commands is filled in init; the command funcs refer back to it through lookup.
func init() {
	commands = []command{
		{name: "current", args: "[-units] [-lang] [-format] CITY[,CITY...]", summary: "current conditions for one or more comma-separated cities", needsKey: true, run: runCurrent},
		{name: "forecast", args: "[-hours 12] [-units] [-lang] [-format] [CITY]", summary: "hourly forecast; detects the city from your IP when omitted", needsKey: true, run: runForecast},
		{name: "advice", args: "[-format] CITY", summary: "short AI generated advice for the current weather", needsKey: true, run: runAdvice},
		{name: "locate", summary: "detect the current city from your public IP", run: runLocate},
		{name: "history", args: "[-limit 10] [-format] CITY", summary: "recently recorded observations for a city", run: runHistory},
		{name: "serve", summary: "run the HTTP JSON API", longRunning: true, run: runServe},
		{name: "watch", args: "[-once]", summary: "record observations for WATCH_CITIES on WATCH_SCHEDULE", needsKey: true, longRunning: true, run: runWatch},
		{name: "list", summary: "list available commands", run: runList},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printCommands(stderr)
		return exitUsage
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printCommands(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitError
	}
	if cmd.needsKey && !cfg.HasOpenWeatherKey() {
		fmt.Fprintln(stderr, "OPENWEATHER_API_KEY is not set. Add it to your environment or .env file.")
		return exitError
	}

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}
	if cmd.longRunning {
		e.logger = observability.NewLogger(cfg)
		e.metrics = observability.NewMetrics()
	} else {
		e.logger = observability.NewStderrLogger(cfg)
		e.metrics = observability.NewMetricsWith(prometheus.NewRegistry())
	}

	if err := cmd.run(ctx, e, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func runList(_ context.Context, e *env, _ []string) error {
	printCommands(e.stdout)
	return nil
}

func printCommands(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
}

// newFlagSet returns a flag set that reports parse errors on stderr.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	if c, ok := lookup(name); ok {
		fs.Usage = func() {
			fmt.Fprintf(e.stderr, "usage: weather %s %s\n", c.name, c.args)
			fs.PrintDefaults()
		}
	}
	return fs
}

// parseFlags parses args, reporting any failure as a usage error. The flag
// package has already printed the problem and the usage text.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}

// usagef prints a usage problem for the named command.
func usagef(e *env, name, format string, args ...any) error {
	fmt.Fprintf(e.stderr, format+"\n", args...)
	if c, ok := lookup(name); ok {
		fmt.Fprintf(e.stderr, "usage: weather %s %s\n", c.name, c.args)
	}
	return errUsage
}

// newProvider builds the OpenWeatherMap client, rate limited when configured.
func newProvider(e *env) domain.WeatherProvider {
	var p domain.WeatherProvider = openweather.NewClient(e.cfg, e.metrics, e.logger)
	if e.cfg.RateLimit > 0 {
		p = openweather.NewRateLimitedProvider(p, e.cfg.RateLimit, e.cfg.RateBurst, e.metrics)
		e.logger.Debug("openweather rate limit enabled", "rps", e.cfg.RateLimit, "burst", e.cfg.RateBurst)
	}
	return p
}
