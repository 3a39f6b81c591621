package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("hello %s", "world")

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "hello world")
		assert.True(t, strings.HasPrefix(output, "[JPOOL] "))
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.Info("hello %s", "world")

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "INFO", data["level"])
		assert.Equal(t, "hello world", data["msg"])
		assert.Contains(t, data, "time")
	})

	t.Run("WithFields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.WithFields(map[string]any{"component": "pool"}).Warn("processed")

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "pool", data["component"])
		assert.Equal(t, "processed", data["msg"])
	})

	t.Run("Level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelWarn)
		l.Info("hidden")
		l.Debug("hidden")
		l.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("SQLJSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelDebug)
		l.SetFormat(LogFormatJSON)
		l.SQL("SELECT 1", 10*time.Millisecond, nil, "arg1", 1)

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "SQL", data["level"])
		assert.Equal(t, "SELECT 1", data["sql"])
		assert.Equal(t, "10ms", data["duration"])
	})

	t.Run("SQLJSONKeyValues", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.WithFields(map[string]any{"driver": "sqlite3"}).
			SQL("SELECT * FROM missing", time.Millisecond, errors.New("no such table: missing"), 7)

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "SQL-ERROR", data["level"])
		assert.Equal(t, "no such table: missing", data["error"])
		assert.Equal(t, "sqlite3", data["driver"])
		assert.Equal(t, []any{float64(7)}, data["args"])
		assert.NotContains(t, data, "msg")
	})

	t.Run("JSONMessageWithoutArgs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.Info("pool idle")

		var data map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
		assert.Equal(t, "pool idle", data["msg"])
		assert.Equal(t, "INFO", data["level"])
	})

	t.Run("SQLErrorAtErrorLevel", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelError)
		l.SQL("SELECT 1", time.Millisecond, nil)
		l.SQL("SELECT * FROM missing", time.Millisecond, errors.New("no such table: missing"))

		output := buf.String()
		assert.NotContains(t, output, "SELECT 1")
		assert.Contains(t, output, "SQL-ERROR")
		assert.Contains(t, output, "no such table: missing")
	})

	t.Run("LevelOutputOnly", func(t *testing.T) {
		errorBuf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(nil)
		l.SetLevelOutput(LogLevelError, errorBuf)

		l.Info("this is info")
		l.Error("this is error")

		assert.NotContains(t, errorBuf.String(), "this is info")
		assert.Contains(t, errorBuf.String(), "this is error")
	})

	t.Run("Discard", func(t *testing.T) {
		l := Discard()
		l.Error("nothing")
	})
}

func TestLogrusAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	base := logrus.New()
	base.SetOutput(buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetLevel(logrus.DebugLevel)

	l := NewLogrusLogger(base).WithFields(map[string]any{"target": "mysql://root@db:3306/app"})
	l.Warn("connect failed: %v", "refused")

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "warning", data["level"])
	assert.Equal(t, "connect failed: refused", data["msg"])
	assert.Equal(t, "mysql://root@db:3306/app", data["target"])

	buf.Reset()
	l.SQL("SELECT ?", time.Millisecond, errors.New("boom"), 1, "a")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "error", data["level"])
	assert.Equal(t, "SELECT ?", data["sql"])
	assert.Equal(t, "boom", data["error"])
	assert.Equal(t, "[1 a]", data["args"])
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core)).WithFields(map[string]any{"component": "pool"})

	l.Info("evicted %d idle connections", 2)
	l.SQL("SELECT 1", time.Millisecond, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "evicted 2 idle connections", entries[0].Message)
	assert.Equal(t, "pool", entries[0].ContextMap()["component"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "SELECT 1", entries[1].ContextMap()["sql"])
}
