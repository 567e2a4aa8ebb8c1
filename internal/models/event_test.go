package models

import (
	"testing"
	"time"
)

func TestLogLevel_Ordering(t *testing.T) {
	cases := []struct {
		lower, higher LogLevel
	}{
		{LevelDebug, LevelInfo},
		{LevelInfo, LevelWarn},
		{LevelWarn, LevelError},
		{LevelError, LevelCritical},
	}
	for _, c := range cases {
		if c.lower.Rank() >= c.higher.Rank() {
			t.Errorf("expected %s < %s", c.lower, c.higher)
		}
	}
	if LevelWarn.Rank() != LevelWarning.Rank() {
		t.Errorf("expected WARN and WARNING to rank equally")
	}
	if LevelCritical.Rank() != LevelFatal.Rank() {
		t.Errorf("expected CRITICAL and FATAL to rank equally")
	}
	if LogLevel("TRACE").Rank() != -1 {
		t.Errorf("expected unknown level rank -1, got %d", LogLevel("TRACE").Rank())
	}
}

func TestNormalizeLevel(t *testing.T) {
	if got := NormalizeLevel("  error "); got != LevelError {
		t.Errorf("expected ERROR, got %q", got)
	}
	if got := NormalizeLevel("warning"); got != LevelWarning {
		t.Errorf("expected WARNING, got %q", got)
	}
}

func TestLogLevel_IsError(t *testing.T) {
	for _, lvl := range []LogLevel{LevelError, LevelCritical, LevelFatal} {
		if !lvl.IsError() {
			t.Errorf("expected %s to be an error level", lvl)
		}
	}
	for _, lvl := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LogLevel("TRACE")} {
		if lvl.IsError() {
			t.Errorf("expected %s not to be an error level", lvl)
		}
	}
}

func TestMaxLevel(t *testing.T) {
	if got := MaxLevel(LevelWarn, LevelError); got != LevelError {
		t.Errorf("expected ERROR, got %s", got)
	}
	if got := MaxLevel(LevelFatal, ""); got != LevelFatal {
		t.Errorf("expected FATAL to beat empty, got %q", got)
	}
}

func TestEvent_HasTimestamp(t *testing.T) {
	var zero time.Time
	if (&Event{Timestamp: &zero}).HasTimestamp() {
		t.Errorf("expected zero timestamp to count as absent")
	}
	now := time.Now()
	if !(&Event{Timestamp: &now}).HasTimestamp() {
		t.Errorf("expected timestamp to be present")
	}
	if (&Event{}).HasTimestamp() {
		t.Errorf("expected nil timestamp to be absent")
	}
}
