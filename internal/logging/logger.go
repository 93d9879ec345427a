// Package logging wraps log/slog with component-scoped loggers and shared
// field names.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger bound to a component name.
type Logger struct {
	*slog.Logger
	component string
	root      slog.Handler
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Writer    io.Writer
}

// DefaultConfig logs text at info level to stderr, leaving stdout for reports.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: "text", Component: ComponentApp, Writer: os.Stderr}
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	comp := cfg.Component
	if comp == "" {
		comp = ComponentApp
	}
	return &Logger{Logger: slog.New(h).With(FieldComponent, comp), component: comp, root: h}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return New(Config{Level: slog.LevelError + 4, Writer: io.Discard})
}

// ParseLevel maps debug|info|warn|error onto a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With returns a logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component, root: l.root}
}

// WithComponent returns a logger for a different component. Attributes added
// with With are not carried over.
func (l *Logger) WithComponent(component string) *Logger {
	h := l.root
	if h == nil {
		h = l.Logger.Handler()
	}
	return &Logger{Logger: slog.New(h).With(FieldComponent, component), component: component, root: h}
}

// Component returns the logger's component name.
func (l *Logger) Component() string { return l.component }

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) { slog.SetDefault(l.Logger) }

type ctxKey struct{}

// NewContext returns ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}
