package monitoring

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestUseZap(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	buf := &zaptest.Buffer{}
	l, err := NewZapLogger("info", "json", buf)
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}
	UseZap(l)
	Logf("reco: %d good jets found", 12)
	Logf = original
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	lines := buf.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), lines)
	}
	for _, want := range []string{`"level":"info"`, `"msg":"reco: 12 good jets found"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("log line %q missing %s", lines[0], want)
		}
	}
}

func TestNewZapLogger_Levels(t *testing.T) {
	buf := &zaptest.Buffer{}
	l, err := NewZapLogger("warn", "console", buf)
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if got := buf.String(); strings.Contains(got, "hidden") || !strings.Contains(got, "WARN") {
		t.Errorf("unexpected console output %q", got)
	}

	if _, err := NewZapLogger("loud", "json", buf); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewZapLogger("info", "xml", buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
