package logger

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// logrusLogger forwards to a logrus entry.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l. Level and format are controlled on l itself.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) WithFields(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) SQL(sql string, duration time.Duration, err error, args ...any) {
	e := l.entry.WithFields(logrus.Fields{
		"sql":      sql,
		"duration": duration.String(),
		"args":     fmt.Sprintf("%v", args),
	})
	if err != nil {
		e.WithError(err).Error("sql failed")
		return
	}
	e.Debug("sql")
}

// zapLogger forwards to a sugared zap logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{s: l.Sugar()}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &zapLogger{s: l.s.With(kv...)}
}

func (l *zapLogger) Debug(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...any) { l.s.Errorf(format, args...) }

func (l *zapLogger) SQL(sql string, duration time.Duration, err error, args ...any) {
	if err != nil {
		l.s.Errorw("sql failed", "sql", sql, "duration", duration, "args", args, "error", err)
		return
	}
	l.s.Debugw("sql", "sql", sql, "duration", duration, "args", args)
}
