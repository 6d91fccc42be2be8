// Package observability wires structured logging for the pipeline
// services. Every log record is enriched with the correlation ID found
// in the request context, so one PR's journey can be traced across
// stages with a single grep.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/bkyoung/review-pipeline/internal/correlation"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "text", "json", or "auto". Auto picks text when stdout
	// is a terminal and json otherwise.
	Format string
	// AddSource includes file:line in each record.
	AddSource bool
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	logger := slog.New(NewCorrelationHandler(newBaseHandler(cfg)))
	slog.SetDefault(logger)
	return logger
}

func newBaseHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	format := cfg.Format
	if format == "" || format == "auto" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "text" {
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      opts.Level,
			AddSource:  opts.AddSource,
			TimeFormat: "15:04:05",
		})
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CorrelationHandler decorates another handler, attaching the
// correlation ID carried by the record's context.
type CorrelationHandler struct {
	slog.Handler
}

func NewCorrelationHandler(h slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{Handler: h}
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := correlation.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{Handler: h.Handler.WithGroup(name)}
}

// Component returns a logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
