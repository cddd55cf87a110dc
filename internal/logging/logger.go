// Package logging is a small leveled logger with key/value context fields.
// Output goes through the standard log package so timestamps and writers are
// configured the usual way.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// Logger is safe for concurrent use. Loggers derived with With share the
// level and output of their parent.
type Logger struct {
	core   *core
	fields []field
}

type core struct {
	mu       sync.RWMutex
	minLevel Level
	output   *log.Logger
}

type field struct {
	key   string
	value interface{}
}

var defaultLogger = New(os.Stderr)

func New(w io.Writer) *Logger {
	return &Logger{core: &core{
		minLevel: LevelInfo,
		output:   log.New(w, "", log.LstdFlags),
	}}
}

func Default() *Logger { return defaultLogger }

func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.minLevel = level
}

func (l *Logger) SetOutput(w io.Writer) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.output = log.New(w, "", log.LstdFlags)
}

func (l *Logger) Enabled(level Level) bool {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return level >= l.core.minLevel
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keyVals ...interface{}) *Logger {
	fields := make([]field, len(l.fields), len(l.fields)+len(keyVals)/2)
	copy(fields, l.fields)
	fields = appendPairs(fields, keyVals)
	return &Logger{core: l.core, fields: fields}
}

func (l *Logger) log(level Level, msg string, keyVals ...interface{}) {
	l.core.mu.RLock()
	minLevel := l.core.minLevel
	output := l.core.output
	l.core.mu.RUnlock()

	if level < minLevel {
		return
	}

	var sb strings.Builder
	sb.WriteString(level.String())
	sb.WriteString(": ")
	sb.WriteString(msg)

	fields := appendPairs(append([]field(nil), l.fields...), keyVals)
	if len(fields) > 0 {
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].key < fields[j].key })
		sb.WriteString(" |")
		for _, f := range fields {
			sb.WriteString(" ")
			sb.WriteString(f.key)
			sb.WriteString("=")
			sb.WriteString(formatValue(f.value))
		}
	}

	output.Print(sb.String())
}

func appendPairs(fields []field, keyVals []interface{}) []field {
	for i := 0; i+1 < len(keyVals); i += 2 {
		if key, ok := keyVals[i].(string); ok {
			fields = append(fields, field{key: key, value: keyVals[i+1]})
		}
	}
	return fields
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case fmt.Stringer:
		return formatValue(val.String())
	default:
		return fmt.Sprint(v)
	}
}

func (l *Logger) Debug(msg string, keyVals ...interface{}) { l.log(LevelDebug, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...interface{})  { l.log(LevelInfo, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...interface{})  { l.log(LevelWarn, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...interface{}) { l.log(LevelError, msg, keyVals...) }

func SetLevel(level Level)                     { defaultLogger.SetLevel(level) }
func SetOutput(w io.Writer)                    { defaultLogger.SetOutput(w) }
func With(keyVals ...interface{}) *Logger      { return defaultLogger.With(keyVals...) }
func Debug(msg string, keyVals ...interface{}) { defaultLogger.Debug(msg, keyVals...) }
func Info(msg string, keyVals ...interface{})  { defaultLogger.Info(msg, keyVals...) }
func Warn(msg string, keyVals ...interface{})  { defaultLogger.Warn(msg, keyVals...) }
func Error(msg string, keyVals ...interface{}) { defaultLogger.Error(msg, keyVals...) }
