package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const termTimeFormat = "01-02|15:04:05.000"

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelCrit:  "CRIT",
}

// TerminalHandler renders log records as a single human-readable line, the
// way an operator attached to a running node would want to read it.
type TerminalHandler struct {
	mu    sync.Mutex
	wr    io.Writer
	attrs []slog.Attr
	level Level
}

// NewTerminalHandler returns a handler that writes every enabled record at
// LevelTrace or above as plain text. useColor is ignored: the output is
// never colorized.
func NewTerminalHandler(wr io.Writer, useColor bool) *TerminalHandler {
	return NewTerminalHandlerWithLevel(wr, LevelTrace, useColor)
}

// NewTerminalHandlerWithLevel is NewTerminalHandler with an explicit minimum
// level.
func NewTerminalHandlerWithLevel(wr io.Writer, level Level, useColor bool) *TerminalHandler {
	return &TerminalHandler{wr: wr, level: level}
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return Level(level) >= h.level
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	b.WriteString(levelNames[Level(r.Level)])
	b.WriteString(" [")
	b.WriteString(r.Time.Format(termTimeFormat))
	b.WriteString("] ")
	b.WriteString(r.Message)

	kv := make([]string, 0, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		kv = append(kv, formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		kv = append(kv, formatAttr(a))
		return true
	})
	for _, s := range kv {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(h.wr, b.String())
	return err
}

func formatAttr(a slog.Attr) string {
	v := a.Value.Any()
	switch x := v.(type) {
	case int64:
		return fmt.Sprintf("%s=%s", a.Key, FormatLogfmtInt64(x))
	case uint64:
		return fmt.Sprintf("%s=%s", a.Key, FormatLogfmtUint64(x))
	case int:
		return fmt.Sprintf("%s=%s", a.Key, FormatLogfmtInt64(int64(x)))
	case string:
		if strings.ContainsAny(x, " \t\n\"=") {
			return fmt.Sprintf("%s=%q", a.Key, x)
		}
		return fmt.Sprintf("%s=%s", a.Key, x)
	case time.Duration:
		return fmt.Sprintf("%s=%s", a.Key, x)
	case fmt.Stringer:
		return fmt.Sprintf("%s=%s", a.Key, x.String())
	default:
		return fmt.Sprintf("%s=%v", a.Key, x)
	}
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	return h
}

// GlogHandler wraps another handler and allows its minimum verbosity to be
// raised or lowered at runtime, the way a long-running node operator toggles
// verbosity without restarting.
type GlogHandler struct {
	inner slog.Handler
	level atomicLevel
}

type atomicLevel struct {
	mu sync.RWMutex
	v  Level
}

func (a *atomicLevel) load() Level {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.v
}

func (a *atomicLevel) store(l Level) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = l
}

// NewGlogHandler creates a handler with runtime-adjustable verbosity wrapping
// inner.
func NewGlogHandler(inner slog.Handler) *GlogHandler {
	h := &GlogHandler{inner: inner}
	h.level.store(LevelTrace)
	return h
}

// Verbosity sets the minimum level that will reach the wrapped handler.
func (h *GlogHandler) Verbosity(level Level) {
	h.level.store(level)
}

func (h *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Level(level) >= h.level.load() && h.inner.Enabled(ctx, level)
}

func (h *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GlogHandler{inner: h.inner.WithAttrs(attrs), level: h.level}
}

func (h *GlogHandler) WithGroup(name string) slog.Handler {
	return &GlogHandler{inner: h.inner.WithGroup(name), level: h.level}
}

// JSONHandler returns a handler that writes newline-delimited JSON records,
// for log shipping into structured aggregators.
func JSONHandler(wr io.Writer) slog.Handler {
	return slog.NewJSONHandler(wr, nil)
}

// JSONHandlerWithLevel is JSONHandler with an explicit minimum level.
func JSONHandlerWithLevel(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{Level: level})
}

// LogfmtHandler returns a handler that writes logfmt-style key=value lines.
func LogfmtHandler(wr io.Writer) slog.Handler {
	return slog.NewTextHandler(wr, nil)
}
