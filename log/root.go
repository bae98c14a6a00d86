package log

import (
	"os"
	"sync/atomic"
)

var root atomic.Value

func init() {
	root.Store(&defaultLogger{Logger: NewLogger(NewGlogHandler(NewTerminalHandler(os.Stderr, false)))})
}

type defaultLogger struct {
	Logger
}

// Root returns the root logger, the default sink used by the top-level
// Trace/Debug/Info/Warn/Error/Crit functions.
func Root() Logger {
	return root.Load().(*defaultLogger)
}

// SetDefault sets l as the root logger.
func SetDefault(l Logger) {
	root.Store(&defaultLogger{Logger: l})
	if glog, ok := l.Handler().(*GlogHandler); ok {
		_ = glog
	}
}

// New returns a new logger with the given context prepended to every line
// it writes, inheriting the root logger's handler.
func New(ctx ...any) Logger {
	return Root().New(ctx...)
}

func Trace(msg string, ctx ...any) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { Root().Crit(msg, ctx...) }
