package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// traceKey mirrors config.TRACE_ID_KEY; pkg code cannot import internal packages.
const traceKey = "traceId"

type Logger struct {
	args []any
}

type Options struct {
	Level  string
	Format string //json for prod, anything else is text
	Output io.Writer
}

func Init(opts Options) {
	options := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, options)
	} else {
		handler = slog.NewTextHandler(out, options)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// NewLogger is safe to call from package vars: the default slog logger is looked up per call,
// so loggers created before Init still use the configured handler.
func NewLogger(section string) *Logger {
	return &Logger{args: []any{"component", section}}
}

func (l *Logger) resolve() *slog.Logger {
	return slog.Default().With(l.args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.resolve().Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.resolve().Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.resolve().Warn(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.resolve().Debug(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	merged := make([]any, 0, len(l.args)+len(args))
	merged = append(merged, l.args...)
	return &Logger{args: append(merged, args...)}
}

// WithTrace attaches the request trace id when the context carries one.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(traceKey).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
