package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_EmitsAtAllLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info", "component", "test")
	l.Warn("warn")
	l.Error("err", "cause", "none")
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{" Info ", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNop_DiscardsWithoutPanic(t *testing.T) {
	l := Nop()
	l.Info("dropped")
	l.Error("dropped too", "k", "v")
}

func TestWith_ReturnsIndependentLogger(t *testing.T) {
	base := Nop()
	child := base.With("request_id", "r-1")
	if child == nil {
		t.Fatalf("With returned nil")
	}
	child.Info("scoped")
	base.Info("unscoped")
}
