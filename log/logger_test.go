package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestTerminalHandlerWritesMessageAndAttrs(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewGlogHandler(NewTerminalHandler(out, false)))
	logger.Info("a message", "foo", "bar")

	have := out.String()
	if !strings.Contains(have, "a message") {
		t.Fatalf("expected message in output, got %q", have)
	}
	if !strings.Contains(have, "foo=bar") {
		t.Fatalf("expected attr in output, got %q", have)
	}
}

func TestGlogHandlerVerbosity(t *testing.T) {
	out := new(bytes.Buffer)
	glog := NewGlogHandler(NewTerminalHandler(out, false))
	glog.Verbosity(LevelWarn)
	logger := NewLogger(glog)

	logger.Debug("should be dropped")
	if out.Len() != 0 {
		t.Fatalf("expected no output below verbosity threshold, got %q", out.String())
	}

	logger.Warn("should be kept")
	if !strings.Contains(out.String(), "should be kept") {
		t.Fatalf("expected message at or above threshold, got %q", out.String())
	}
}

func TestWithAddsPersistentContext(t *testing.T) {
	out := new(bytes.Buffer)
	logger := NewLogger(NewGlogHandler(NewTerminalHandler(out, false))).With("peer", "p1")
	logger.Info("hello")
	if !strings.Contains(out.String(), "peer=p1") {
		t.Fatalf("expected persistent context in output, got %q", out.String())
	}
}
