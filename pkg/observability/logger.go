package observability

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds the logging configuration.
type Config struct {
	LogFormat    string
	LogLevel     slog.Level
	LogAddSource bool
}

// ConfigureLogger creates a logger based on the provided configuration:
// a JSON handler for machine consumption, tint for the console.
func ConfigureLogger(cfg *Config, logOut io.Writer) *slog.Logger {
	//nolint: exhaustruct // optional config
	logOpts := &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogAddSource,
	}

	var logHandler slog.Handler
	switch cfg.LogFormat {
	case "json":
		logHandler = slog.NewJSONHandler(logOut, logOpts)
	default:
		//nolint:exhaustruct // optional config
		logHandler = tint.NewHandler(logOut, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogAddSource,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(logHandler)
}
