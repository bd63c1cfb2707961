package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger configured for the given service name.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// FromConfig builds a service logger writing to w according to cfg.
func FromConfig(service string, cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.level(), AddSource: cfg.AddSource}
	var h slog.Handler
	if cfg.Format == FormatText {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	log := slog.New(&componentHandler{Handler: h, cfg: cfg})
	return log.With("service", service)
}

// NewFromFile loads a logging configuration file and returns the configured logger.
// An empty path yields the default JSON logger at info level.
func NewFromFile(service, path string) (*slog.Logger, error) {
	if path == "" {
		return New(service, slog.LevelInfo), nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(service, cfg, os.Stdout), nil
}

// Component returns a child logger tagged with a component name. Per-component levels
// from the logging configuration apply to it.
func Component(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With(componentKey, name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
