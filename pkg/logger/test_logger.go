package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger returns a logger that writes through t.Log so output is
// attached to the failing test.
func NewTestLogger(t *testing.T) *Logger {
	return &Logger{
		Logger:  zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel)),
		verbose: true,
	}
}
