package models

import (
	"strings"
	"time"
)

// LogLevel is the normalized severity of an event. Values are always
// upper-case; unknown inputs are preserved verbatim after upper-casing
// but rank below every known level.
type LogLevel string

const (
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelWarn     LogLevel = "WARN"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
	LevelFatal    LogLevel = "FATAL"
)

// NormalizeLevel upper-cases and trims a raw level string.
func NormalizeLevel(s string) LogLevel {
	return LogLevel(strings.ToUpper(strings.TrimSpace(s)))
}

// Rank orders levels DEBUG < INFO < WARN=WARNING < ERROR < CRITICAL=FATAL.
// Unknown levels rank -1 so they never win a severity comparison.
func (l LogLevel) Rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn, LevelWarning:
		return 2
	case LevelError:
		return 3
	case LevelCritical, LevelFatal:
		return 4
	default:
		return -1
	}
}

// IsError reports whether the level indicates a failure condition
// (ERROR, CRITICAL or FATAL).
func (l LogLevel) IsError() bool {
	return l.Rank() >= 3
}

// MaxLevel returns the higher-ranked of two levels. Empty levels lose
// to any known level.
func MaxLevel(a, b LogLevel) LogLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Event is the normalized representation of a single observation from
// one service. Every ingestion path converges to this shape.
type Event struct {
	Timestamp *time.Time             `json:"timestamp,omitempty"`
	Service   string                 `json:"service,omitempty"`
	Level     LogLevel               `json:"level,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// HasTimestamp reports whether the event carries a parsed timestamp.
func (e *Event) HasTimestamp() bool {
	return e.Timestamp != nil && !e.Timestamp.IsZero()
}

// When returns the event timestamp, or the zero time when absent.
func (e *Event) When() time.Time {
	if e.Timestamp == nil {
		return time.Time{}
	}
	return *e.Timestamp
}
