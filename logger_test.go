package gdev

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_DefaultIsSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if l.Enabled(nil, slog.LevelError) {
		t.Error("default logger is enabled; want silent")
	}
}

func TestSetLogger_RoundTrip(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("gdev: test message", "k", "v")
	if !strings.Contains(buf.String(), "gdev: test message") {
		t.Errorf("log output %q missing message", buf.String())
	}

	// Nil restores the silent default.
	SetLogger(nil)
	buf.Reset()
	Logger().Error("gdev: should not appear")
	if buf.Len() != 0 {
		t.Errorf("silent logger produced output: %q", buf.String())
	}
}
