package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestGetZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getZapLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, getZapLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, getZapLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, getZapLevel("anything-else"))
}

func TestLogLevelFiltering(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown 2", logs.All()[0].Message)
}

func TestWithAddsFields(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.With(zap.String("region", "us-east-1")).Info("converged")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "us-east-1", entries[0].ContextMap()["region"])
}

func TestNopLoggerIsSafe(t *testing.T) {
	l := NewNopLogger()
	l.Debug("quiet")
	l.Errorf("still quiet: %v", "x")
}

func TestNewTestLoggerWritesThroughTestingT(t *testing.T) {
	l := NewTestLogger(t)
	l.Infof("attached to %s", t.Name())
}
