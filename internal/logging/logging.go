package logging

import (
	corelogger "github.com/platformbuilds/hindsight/pkg/logger"
)

// Logger is the minimal logging interface internal packages depend on.
// It mirrors pkg/logger so the engine packages never import the concrete
// zap-backed implementation directly.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
}

// NewNop returns a logger that discards everything. Convenience for tests.
func NewNop() Logger {
	return &coreAdapter{core: corelogger.Nop()}
}

// FromCoreLogger wraps the project core logger (pkg/logger.Logger) into
// the internal interface. cmd/ constructs the concrete logger; everything
// under internal/ receives this adapter.
func FromCoreLogger(core corelogger.Logger) Logger {
	if core == nil {
		return NewNop()
	}
	return &coreAdapter{core: core}
}

type coreAdapter struct {
	core corelogger.Logger
}

func (c *coreAdapter) Info(msg string, fields ...interface{})  { c.core.Info(msg, fields...) }
func (c *coreAdapter) Error(msg string, fields ...interface{}) { c.core.Error(msg, fields...) }
func (c *coreAdapter) Warn(msg string, fields ...interface{})  { c.core.Warn(msg, fields...) }
func (c *coreAdapter) Debug(msg string, fields ...interface{}) { c.core.Debug(msg, fields...) }
func (c *coreAdapter) Fatal(msg string, fields ...interface{}) { c.core.Fatal(msg, fields...) }
