package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type traceKey struct{}

// WithTraceID attaches a trace identifier that WithContext picks up.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// slogLogger implements Logger on top of log/slog
type slogLogger struct {
	logger *slog.Logger
	closer io.Closer
}

// New creates a logger from the configuration. The returned close function
// releases the log file when Output is "file".
func New(cfg LogConfig) (Logger, func() error, error) {
	var (
		out    io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging: file output requires file_path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, nil, fmt.Errorf("logging: unsupported output %q", cfg.Output)
	}

	l := NewWithWriter(out, cfg)
	sl := l.(*slogLogger)
	sl.closer = closer
	return sl, sl.close, nil
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(w io.Writer, cfg LogConfig) Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.IncludeCaller,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &slogLogger{logger: slog.New(handler)}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return NewWithWriter(io.Discard, LogConfig{Level: "error"})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, toAttrs(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, toAttrs(fields)...)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, toAttrs(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, toAttrs(fields)...)
}

func (l *slogLogger) WithFields(fields ...Field) Logger {
	return &slogLogger{logger: l.logger.With(toAttrs(fields)...), closer: l.closer}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if traceID, ok := ctx.Value(traceKey{}).(string); ok && traceID != "" {
		return l.WithFields(F("trace_id", traceID))
	}
	return l
}

func (l *slogLogger) LogRunEvent(runID string, event string, data map[string]interface{}) {
	l.logger.Info(event, append([]any{slog.String("run_id", runID)}, mapAttrs(data)...)...)
}

func (l *slogLogger) LogAgentEvent(runID string, agentName string, event string, data map[string]interface{}) {
	attrs := []any{slog.String("run_id", runID), slog.String("agent", agentName)}
	l.logger.Info(event, append(attrs, mapAttrs(data)...)...)
}

func (l *slogLogger) LogSystemEvent(event string, data map[string]interface{}) {
	l.logger.Info(event, mapAttrs(data)...)
}

func mapAttrs(data map[string]interface{}) []any {
	if len(data) == 0 {
		return nil
	}
	return []any{slog.Any("data", data)}
}
