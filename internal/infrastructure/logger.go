package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

var (
	defaultLogger *slog.Logger
	defaultOnce   sync.Once

	logFile   *os.File
	logFileMu sync.Mutex
)

// InitializeLogger builds the process logger from cfg, writing console
// output to stdout, and installs it as slog's default. Only the first call
// has an effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	defaultOnce.Do(func() {
		defaultLogger, err = NewLogger(cfg, os.Stdout)
		if defaultLogger != nil {
			slog.SetDefault(defaultLogger)
		}
	})
	return defaultLogger, err
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger ran
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// NewLogger builds a JSON or text logger. Output "file" appends to
// cfg.FilePath, "both" tees it with console, anything else is console only.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	out := console
	mode := strings.ToLower(cfg.Output)
	if mode == "file" || mode == "both" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logFileMu.Lock()
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile = f
		logFileMu.Unlock()

		out = f
		if mode == "both" {
			out = io.MultiWriter(console, f)
		}
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     parseLogLevel(cfg.Level),
	}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(&correlationHandler{Handler: h}), nil
}

// correlationHandler stamps each record with the search trace ID and, when
// a recording span is active, the OpenTelemetry trace and span IDs
type correlationHandler struct {
	slog.Handler
}

func (h *correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("otel_trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *correlationHandler) WithGroup(name string) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if level == "warning" {
		level = "warn"
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CloseLogFile closes the log file opened by NewLogger, if any
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting forgets the process logger so InitializeLogger runs again
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	defaultLogger = nil
	defaultOnce = sync.Once{}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log output to file requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
