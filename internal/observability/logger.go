// Package observability provides the logging and metrics capabilities shared
// by the extractor worker, the ingest activities, and the launcher client.
package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Logger is a leveled key-value logger. The method set is intentionally
// identical to Temporal's log.Logger so a single logger instance can be handed
// to the Temporal client/worker and used directly inside activities.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// Level controls the minimum severity emitted by the stdout logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// StdoutLogger writes structured log lines to stdout.
type StdoutLogger struct {
	level  Level
	fields map[string]interface{}
	logger *log.Logger
}

// NewLogger creates a stdout logger at the given level.
func NewLogger(level Level) *StdoutLogger {
	return &StdoutLogger{
		level:  level,
		fields: map[string]interface{}{},
		logger: log.New(os.Stdout, "", 0),
	}
}

// WithFields returns a logger that includes the given fields on every line.
func (l *StdoutLogger) WithFields(fields map[string]interface{}) *StdoutLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StdoutLogger{level: l.level, fields: merged, logger: l.logger}
}

func (l *StdoutLogger) Debug(msg string, keyvals ...interface{}) {
	l.log(LevelDebug, "DEBUG", msg, keyvals...)
}

func (l *StdoutLogger) Info(msg string, keyvals ...interface{}) {
	l.log(LevelInfo, "INFO", msg, keyvals...)
}

func (l *StdoutLogger) Warn(msg string, keyvals ...interface{}) {
	l.log(LevelWarn, "WARN", msg, keyvals...)
}

func (l *StdoutLogger) Error(msg string, keyvals ...interface{}) {
	l.log(LevelError, "ERROR", msg, keyvals...)
}

func (l *StdoutLogger) log(level Level, label, msg string, keyvals ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": label,
		"msg":   msg,
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	// Trailing key without a value gets paired with an empty string rather
	// than dropped, so misuse is still visible in the output.
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprintf("%v", keyvals[i])
		if i+1 < len(keyvals) {
			entry[key] = fmt.Sprintf("%v", keyvals[i+1])
		} else {
			entry[key] = ""
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":%q,"msg":%q}`, label, msg)
		return
	}
	l.logger.Print(string(line))
}
