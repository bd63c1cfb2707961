package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const componentKey = "component"

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config mirrors the logging configuration file.
type Config struct {
	Level      string            `yaml:"level"`
	Format     string            `yaml:"format"`
	AddSource  bool              `yaml:"add_source"`
	Components map[string]string `yaml:"components"`
}

// LoadConfig reads a YAML logging configuration.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read log config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse log config %s: %w", path, err)
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.Format != FormatJSON && cfg.Format != FormatText {
		return Config{}, fmt.Errorf("log config %s: unsupported format %q", path, cfg.Format)
	}
	if _, err := ParseLevel(cfg.Level); err != nil {
		return Config{}, fmt.Errorf("log config %s: %w", path, err)
	}
	for name, level := range cfg.Components {
		if _, err := ParseLevel(level); err != nil {
			return Config{}, fmt.Errorf("log config %s: component %s: %w", path, name, err)
		}
	}
	return cfg, nil
}

// ParseLevel converts a level name; empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func (c Config) level() slog.Level {
	lowest, _ := ParseLevel(c.Level)
	for _, name := range c.Components {
		if lvl, err := ParseLevel(name); err == nil && lvl < lowest {
			lowest = lvl
		}
	}
	return lowest
}

func (c Config) levelFor(component string) slog.Level {
	if name, ok := c.Components[component]; ok {
		lvl, _ := ParseLevel(name)
		return lvl
	}
	lvl, _ := ParseLevel(c.Level)
	return lvl
}

// componentHandler filters records using the level of the component attribute
// attached through Component. The wrapped handler is opened at the lowest configured
// level so per-component overrides can go below the global one.
type componentHandler struct {
	slog.Handler
	cfg       Config
	component string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.cfg.levelFor(h.component) && h.Handler.Enabled(ctx, level)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, attr := range attrs {
		if attr.Key == componentKey {
			component = attr.Value.String()
		}
	}
	return &componentHandler{Handler: h.Handler.WithAttrs(attrs), cfg: h.cfg, component: component}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{Handler: h.Handler.WithGroup(name), cfg: h.cfg, component: h.component}
}
