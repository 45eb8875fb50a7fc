package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects how records are rendered. Format is "json" or "text";
// anything else falls back to JSON.
type Options struct {
	Service   string
	Level     string
	Format    string
	AddSource bool
}

// New returns a logger writing to stdout. Every record carries the service
// name so api and worker output can share one sink.
func New(opts Options) *slog.Logger {
	return NewTo(os.Stdout, opts)
}

func NewTo(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	return logger
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func ParseLevel(level string) slog.Level {
	var out slog.Level
	normalized := strings.ToUpper(strings.TrimSpace(level))
	if normalized == "WARNING" {
		normalized = "WARN"
	}
	if err := out.UnmarshalText([]byte(normalized)); err != nil {
		return slog.LevelInfo
	}
	return out
}
