package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface the pool and its connections log through.
type Logger interface {
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, err error, args ...any)
}

// baseLogger contains common logging functionality
type baseLogger struct {
	mu           *sync.Mutex
	level        LogLevel
	format       LogFormat
	writer       io.Writer
	levelWriters map[LogLevel]io.Writer
	fields       map[string]any
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &baseLogger{
		mu:           l.mu,
		level:        l.level,
		format:       l.format,
		writer:       l.writer,
		levelWriters: l.levelWriters,
		fields:       newFields,
	}
}

// StdLogger is the default implementation of Logger.
// Loggers derived with WithFields share the writers and the write lock
// of their parent.
type StdLogger struct {
	baseLogger
}

// NewStdLogger creates a new standard logger writing text to stdout at info level.
func NewStdLogger() *StdLogger {
	return &StdLogger{
		baseLogger: baseLogger{
			mu:           &sync.Mutex{},
			level:        LogLevelInfo,
			format:       LogFormatText,
			writer:       os.Stdout,
			levelWriters: make(map[LogLevel]io.Writer),
			fields:       make(map[string]any),
		},
	}
}

// Discard returns a logger that drops everything.
func Discard() *StdLogger {
	l := NewStdLogger()
	l.SetLevel(LogLevelSilent)
	l.SetOutput(nil)
	return l
}

func (l *StdLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *StdLogger) SetFormat(format LogFormat) {
	l.format = format
}

// SetOutput sets the main writer. A nil writer disables the main output
// while per-level writers keep working.
func (l *StdLogger) SetOutput(w io.Writer) {
	l.writer = w
}

// SetLevelOutput additionally sends entries of exactly the given level to w.
func (l *StdLogger) SetLevelOutput(level LogLevel, w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levelWriters[level] = w
}

func (l *StdLogger) WithFields(fields map[string]any) Logger {
	newLogger := &StdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *StdLogger) Debug(format string, args ...any) {
	if l.level >= LogLevelDebug {
		l.log(LogLevelDebug, "DEBUG", format, args...)
	}
}

func (l *StdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.log(LogLevelInfo, "INFO", format, args...)
	}
}

func (l *StdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.log(LogLevelWarn, "WARN", format, args...)
	}
}

func (l *StdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.log(LogLevelError, "ERROR", format, args...)
	}
}

// SQL logs one statement. Failed statements are logged at error level,
// successful ones at debug level.
func (l *StdLogger) SQL(sql string, duration time.Duration, err error, args ...any) {
	level, name := LogLevelDebug, "SQL"
	if err != nil {
		level, name = LogLevelError, "SQL-ERROR"
	}
	if l.level < level {
		return
	}
	if l.format == LogFormatJSON {
		fields := []any{"sql", sql, "duration", duration.String(), "args", args}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		l.logKV(level, name, fields)
		return
	}
	if err != nil {
		l.log(level, name, "[%v] %s | args: %v | error: %v", duration, sql, args, err)
		return
	}
	l.log(level, name, "[%v] %s%s%s | args: %v", duration, getSQLColor(sql), sql, ansiReset, args)
}

func (l *StdLogger) log(level LogLevel, name string, format string, args ...any) {
	now := time.Now()
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if l.format == LogFormatJSON {
		data := l.jsonData(now, name)
		data["msg"] = msg
		l.writeJSON(level, data)
		return
	}
	fieldStr := ""
	if len(l.fields) > 0 {
		fieldStr = fmt.Sprintf(" fields: %v", l.fields)
	}
	l.write(level, []byte(fmt.Sprintf("[JPOOL] %s %s: %s%s\n", now.Format("2006-01-02 15:04:05"), name, msg, fieldStr)))
}

// logKV writes a JSON line with kv merged in as key/value pairs.
func (l *StdLogger) logKV(level LogLevel, name string, kv []any) {
	data := l.jsonData(time.Now(), name)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			data[key] = kv[i+1]
		}
	}
	l.writeJSON(level, data)
}

func (l *StdLogger) jsonData(now time.Time, name string) map[string]any {
	data := make(map[string]any, len(l.fields)+3)
	for k, v := range l.fields {
		data[k] = v
	}
	data["time"] = now.Format(time.RFC3339)
	data["level"] = name
	return data
}

func (l *StdLogger) writeJSON(level LogLevel, data map[string]any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	l.write(level, append(b, '\n'))
}

func (l *StdLogger) write(level LogLevel, line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Write(line)
	}
	if w, ok := l.levelWriters[level]; ok && w != nil {
		w.Write(line)
	}
}

func getSQLColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	default:
		return ansiCyan
	}
}
