package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type ctxKey string

const (
	ctxKeyConnID ctxKey = "conn_id"
)

var level = new(slog.LevelVar)

// global logger, JSON to stdout.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func Logger() *slog.Logger {
	return logger.Load()
}

// SetOutput redirects the global logger. Tests use it to capture or silence output.
func SetOutput(w io.Writer) {
	logger.Store(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// SetLevel accepts debug, info, warn or error. Anything else keeps info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithComponent tags every record with the emitting component.
func WithComponent(name string) *slog.Logger {
	return Logger().With("component", name)
}

// WithConnID stores a connection id in the context.
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ctxKeyConnID, connID)
}

// LoggerFromContext adds conn_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	connID, _ := ctx.Value(ctxKeyConnID).(string)
	if connID == "" {
		return Logger()
	}
	return Logger().With("conn_id", connID)
}
