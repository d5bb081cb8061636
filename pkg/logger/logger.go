package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// New returns the process JSON logger on stdout.
// LOG_LEVEL (debug, info, warn, error) overrides the env default.
func New(appEnv string) *slog.Logger {
	return NewWriter(os.Stdout, appEnv, os.Getenv("LOG_LEVEL"))
}

// NewWriter builds a JSON logger writing to w.
func NewWriter(w io.Writer, appEnv, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level(appEnv, level)})
	return slog.New(h).With("service", "dialer")
}

// Level resolves the minimum level. local and dev log debug by default.
func Level(appEnv, override string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Attrs returns ctx carrying the context logger extended with args.
func Attrs(ctx context.Context, args ...any) context.Context {
	return With(ctx, From(ctx).With(args...))
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ShutdownFlush is a no-op with the unbuffered JSON handler. serve calls it
// last so a buffered handler can be swapped in without touching main.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
