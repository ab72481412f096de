package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// BufferedSlogHandler records every log line in memory. Loggers derived
// with With or WithGroup write into the same buffer.
type BufferedSlogHandler struct {
	buf    *recordBuffer
	attrs  []slog.Attr
	prefix string
	t      *testing.T
}

type recordBuffer struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewBufferedSlogHandler creates a handler that also echoes lines to t.Logf
// when t is not nil
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{buf: &recordBuffer{}, t: t}
}

// NewTestLogger returns a logger and the handler capturing its output
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[h.prefix+a.Key] = a.Value.Any()
		return true
	})

	h.buf.mu.Lock()
	h.buf.records = append(h.buf.records, rec)
	h.buf.mu.Unlock()

	if h.t != nil {
		h.t.Logf("%s %s %v", r.Level, r.Message, rec.Attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// GetRecords returns a copy of everything captured so far
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	return h.filter(func(LogRecord) bool { return true })
}

// GetRecordsByLevel returns the records logged at exactly level
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	return h.filter(func(r LogRecord) bool { return r.Level == level })
}

// ContainsMessage reports whether any message contains substr
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	return len(h.filter(func(r LogRecord) bool { return strings.Contains(r.Message, substr) })) > 0
}

// ContainsAttr reports whether any record carries key=value
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	return len(h.filter(func(r LogRecord) bool {
		v, ok := r.Attrs[key]
		return ok && v == value
	})) > 0
}

func (h *BufferedSlogHandler) filter(keep func(LogRecord) bool) []LogRecord {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()

	out := make([]LogRecord, 0, len(h.buf.records))
	for _, r := range h.buf.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// AssertNoErrors fails t when an error-level line was logged
func AssertNoErrors(t *testing.T, h *BufferedSlogHandler) {
	t.Helper()
	for _, r := range h.GetRecordsByLevel(slog.LevelError) {
		t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
	}
}
