// Package log implements a structured logger on top of log/slog, in the
// style used throughout this module: leveled methods, key/value pairs, and
// a process-wide root logger that library code reaches through top-level
// functions instead of threading a *Logger everywhere.
package log

import (
	"context"
	"log/slog"
	"os"
)

const errorKey = "LOG_ERROR"

// Level mirrors slog.Level but gives the six levels this package actually
// uses names that match the rest of the codebase's vocabulary.
type Level slog.Level

const (
	LevelTrace Level = Level(slog.LevelDebug - 4)
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
	LevelCrit  Level = Level(slog.LevelError + 4)
)

// Logger is the interface consumed by every component in this module. The
// concrete implementation wraps an *slog.Logger; tests may substitute any
// other implementation.
type Logger interface {
	With(ctx ...any) Logger
	New(ctx ...any) Logger

	Log(level Level, msg string, ctx ...any)

	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)

	Enabled(ctx context.Context, level Level) bool
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

// NewLogger wraps a slog.Handler into a Logger.
func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Write(level Level, msg string, ctx ...any) {
	l.Log(level, msg, ctx...)
}

func (l *logger) Log(level Level, msg string, ctx ...any) {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil, errorKey, "Normalized odd number of arguments by adding nil")
	}
	l.inner.Log(context.Background(), slog.Level(level), msg, ctx...)
}

func (l *logger) With(ctx ...any) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) New(ctx ...any) Logger {
	return l.With(ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) { l.Log(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.Log(LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.Log(LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.Log(LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.Log(LevelError, msg, ctx...) }
func (l *logger) Crit(msg string, ctx ...any) {
	l.Log(LevelCrit, msg, ctx...)
	os.Exit(1)
}

func (l *logger) Enabled(ctx context.Context, level Level) bool {
	return l.inner.Enabled(ctx, slog.Level(level))
}

func (l *logger) Handler() slog.Handler {
	return l.inner.Handler()
}
