// Package logging provides structured-logging helpers: a discard
// logger for tests that
// don't care about log output, a rotating file logger for long-lived
// processes, and an in-memory buffer handler so tests can assert on
// emitted log entries without capturing stdout.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewDiscardLogger returns a logger that drops every record — the
// default for unit tests that exercise a component requiring a
// *slog.Logger but don't assert on its output.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FileOptions configures the rotating file logger NewFileLogger builds
// for long-lived processes, whose log file rotation keeps from growing
// without bound.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      slog.Level
}

// NewFileLogger builds a *slog.Logger writing JSON lines to a
// lumberjack-rotated file.
func NewFileLogger(opts FileOptions) *slog.Logger {
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}
	writer := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: opts.Level}))
}

// Entry is one captured log record, rendered into a form tests can
// assert on without depending on slog's internal Record representation.
type Entry struct {
	Level   string
	Message string
	Attrs   map[string]any
}

// LogBuffer is a fixed-capacity ring of recent Entries, filled by a
// BufferHandler. Safe for concurrent use.
type LogBuffer struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// NewLogBuffer builds a LogBuffer that retains at most capacity
// entries, dropping the oldest as new ones arrive.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &LogBuffer{capacity: capacity}
}

func (b *LogBuffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
}

// GetRecent returns up to n of the most recently recorded entries,
// oldest first.
func (b *LogBuffer) GetRecent(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.entries) {
		n = len(b.entries)
	}
	start := len(b.entries) - n
	out := make([]Entry, n)
	copy(out, b.entries[start:])
	return out
}

// BufferHandler is an slog.Handler that forwards every record to a
// LogBuffer instead of (or in addition to, via a test composing both)
// writing to a stream.
type BufferHandler struct {
	buffer *LogBuffer
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
}

// NewBufferHandler builds a handler writing into buffer. opts may be
// nil to accept every level.
func NewBufferHandler(buffer *LogBuffer, opts *slog.HandlerOptions) *BufferHandler {
	return &BufferHandler{buffer: buffer, opts: opts}
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts == nil || h.opts.Level == nil {
		return true
	}
	return level >= h.opts.Level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any, record.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.buffer.add(Entry{
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   attrs,
	})
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferHandler{buffer: h.buffer, opts: h.opts, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *BufferHandler) WithGroup(_ string) slog.Handler {
	return h
}

var _ slog.Handler = (*BufferHandler)(nil)
